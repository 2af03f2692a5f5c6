package db_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ticket-ledger/internal/ledger"
	"ticket-ledger/internal/ledger/db"
	"ticket-ledger/internal/models"
)

var (
	admin     = models.Address("0x00000000000000000000000000000000000000a1")
	organizer = models.Address("0x00000000000000000000000000000000000000b2")
	alice     = models.Address("0x00000000000000000000000000000000000000c3")
	bob       = models.Address("0x00000000000000000000000000000000000000d4")
)

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()
	// Each test gets its own shared-cache database so parallel packages do not collide.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, db.SQLiteDialect())
	t.Cleanup(func() { bunDB.Close() })

	store := &db.DB{Bun: bunDB}
	require.NoError(t, store.CreateSchema(context.Background()))
	return store
}

func TestLedgerRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t)
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	opts := ledger.Options{Admin: admin, ListingFee: 10, Clock: clock, Store: store}

	l, err := ledger.Open(ctx, opts)
	require.NoError(t, err)

	require.NoError(t, l.ApproveOrganizer(ctx, admin, organizer))
	eventID, err := l.CreateEvent(ctx, organizer, models.EventParams{
		Title:          "Harbour Lights",
		Price:          25,
		MaxSeats:       10,
		MaxResalePrice: 30,
		EventTimestamp: uint64(now.Add(24 * time.Hour).Unix()),
		Location:       "Pier 4",
		ImageURL:       "ipfs://bafybeigdyrzt",
	}, 10)
	require.NoError(t, err)
	tokenID, err := l.Mint(ctx, alice, eventID, 4, 25)
	require.NoError(t, err)
	require.NoError(t, l.ListForSale(ctx, alice, tokenID, 30))
	require.NoError(t, l.BuyResale(ctx, bob, tokenID, 30))

	reopened, err := ledger.Open(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, l.Stats(), reopened.Stats())

	ev, err := reopened.GetEvent(eventID)
	require.NoError(t, err)
	assert.Equal(t, "Harbour Lights", ev.Title)
	assert.Equal(t, uint64(9), ev.SeatsAvailable)
	assert.Equal(t, uint64(25), ev.EscrowBalance)
	assert.Equal(t, "ipfs://bafybeigdyrzt", ev.ImageURL)

	ticket, err := reopened.GetTicket(tokenID)
	require.NoError(t, err)
	assert.Equal(t, bob, ticket.Owner)
	assert.Equal(t, alice, ticket.OriginalOwner)
	assert.False(t, ticket.IsForSale)
	assert.True(t, ticket.CheckedInAt.IsZero())

	assert.Equal(t, uint64(30), reopened.PendingPayout(alice))
	assert.Equal(t, uint64(10), reopened.FeeBalance())
	assert.True(t, reopened.IsApprovedOrganizer(organizer))

	seats, err := reopened.SeatsTaken(eventID)
	require.NoError(t, err)
	assert.Equal(t, []uint64{4}, seats)

	_, err = reopened.Mint(ctx, alice, eventID, 4, 25)
	assert.ErrorIs(t, err, ledger.ErrSeatTaken)
}

func TestEntriesFrom(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t)
	l, err := ledger.Open(ctx, ledger.Options{Admin: admin, Store: store})
	require.NoError(t, err)
	require.NoError(t, l.ApproveOrganizer(ctx, admin, organizer))
	require.NoError(t, l.ApproveOrganizer(ctx, admin, alice))
	require.NoError(t, l.RevokeOrganizer(ctx, admin, alice))

	entries, err := store.Entries(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(2), entries[0].Seq)
	assert.Equal(t, models.EntryOrganizerRevoked, entries[1].Kind)
	assert.Equal(t, l.Entries(2, 0), entries)

	all, err := store.Entries(ctx, 1)
	require.NoError(t, err)
	assert.NoError(t, ledger.VerifyChain(all))
}

func TestCommitIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t)
	l, err := ledger.Open(ctx, ledger.Options{Admin: admin, Store: store})
	require.NoError(t, err)
	require.NoError(t, l.ApproveOrganizer(ctx, admin, organizer))

	// Reusing seq 1 must roll back the organizer row written earlier in the same commit.
	err = store.Commit(ctx, &ledger.Changeset{
		Organizers: []models.Organizer{{Address: alice, Approved: true, UpdatedAt: time.Now().UTC()}},
		Entries:    []models.Entry{{Seq: 1, Kind: models.EntryOrganizerApproved, Actor: admin, PrevHash: "genesis", Hash: "x"}},
	})
	require.Error(t, err)

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Organizers, 1)
	assert.Equal(t, organizer, snap.Organizers[0].Address)
	assert.Len(t, snap.Entries, 1)
}

func TestOpenRejectsTamperedRows(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t)
	now := time.Unix(1_700_000_000, 0)
	opts := ledger.Options{Admin: admin, Clock: func() time.Time { return now }, Store: store}

	l, err := ledger.Open(ctx, opts)
	require.NoError(t, err)
	require.NoError(t, l.ApproveOrganizer(ctx, admin, organizer))
	eventID, err := l.CreateEvent(ctx, organizer, models.EventParams{
		Title: "Quiet Room", Price: 5, MaxSeats: 2, MaxResalePrice: 5,
		EventTimestamp: uint64(now.Add(time.Hour).Unix()),
	}, 0)
	require.NoError(t, err)
	_, err = l.Mint(ctx, alice, eventID, 0, 5)
	require.NoError(t, err)

	_, err = store.Bun.NewUpdate().
		Model((*models.Event)(nil)).
		Set("escrow_balance = ?", 500).
		Where("id = ?", eventID).
		Exec(ctx)
	require.NoError(t, err)

	_, err = ledger.Open(ctx, opts)
	assert.ErrorIs(t, err, ledger.ErrCorruptJournal)
}

func TestAmountsAboveMaxInt64SurviveReopen(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t)
	now := time.Unix(1_700_000_000, 0)
	const (
		price     = uint64(6_000_000_000_000_000_000)
		resaleCap = uint64(9_500_000_000_000_000_000)
		fee       = uint64(10_000_000_000_000_000_000)
	)
	opts := ledger.Options{Admin: admin, ListingFee: fee, Clock: func() time.Time { return now }, Store: store}

	l, err := ledger.Open(ctx, opts)
	require.NoError(t, err)
	require.NoError(t, l.ApproveOrganizer(ctx, admin, organizer))
	eventID, err := l.CreateEvent(ctx, organizer, models.EventParams{
		Title: "Grand Hall", Price: price, MaxSeats: 2, MaxResalePrice: resaleCap,
		EventTimestamp: uint64(now.Add(time.Hour).Unix()),
	}, fee)
	require.NoError(t, err)
	tokenID, err := l.Mint(ctx, alice, eventID, 0, price)
	require.NoError(t, err)
	_, err = l.Mint(ctx, bob, eventID, 1, price)
	require.NoError(t, err)
	require.NoError(t, l.ListForSale(ctx, alice, tokenID, resaleCap))
	require.NoError(t, l.BuyResale(ctx, bob, tokenID, resaleCap))

	reopened, err := ledger.Open(ctx, opts)
	require.NoError(t, err)

	ev, err := reopened.GetEvent(eventID)
	require.NoError(t, err)
	assert.Equal(t, uint64(12_000_000_000_000_000_000), ev.EscrowBalance)
	assert.Equal(t, price, ev.Price)
	assert.Equal(t, resaleCap, ev.MaxResalePrice)

	ticket, err := reopened.GetTicket(tokenID)
	require.NoError(t, err)
	assert.Equal(t, price, ticket.MintPrice)
	assert.Equal(t, resaleCap, reopened.PendingPayout(alice))
	assert.Equal(t, fee, reopened.FeeBalance())

	entries, err := store.Entries(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, l.Entries(1, 0), entries)
	assert.NoError(t, reopened.Verify())
}
