package ledger_test

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-ledger/internal/ledger"
	"ticket-ledger/internal/models"
)

func busyLedger(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	id := f.createEvent(t, f.params())
	a := f.mint(t, alice, id, 0)
	b := f.mint(t, bob, id, 1)
	require.NoError(t, f.l.ListForSale(f.ctx, alice, a, 150))
	require.NoError(t, f.l.BuyResale(f.ctx, carol, a, 150))

	cancelled := f.createEvent(t, f.params())
	c := f.mint(t, alice, cancelled, 0)
	require.NoError(t, f.l.CancelEvent(f.ctx, organizer, cancelled))
	_, err := f.l.RefundAttendee(f.ctx, alice, c)
	require.NoError(t, err)

	f.toEventStart(t, id)
	require.NoError(t, f.l.MarkEventOccurred(f.ctx, organizer, id))
	require.NoError(t, f.l.CheckIn(f.ctx, organizer, b))
	_, err = f.l.WithdrawOrganizer(f.ctx, organizer, id)
	require.NoError(t, err)
	_, err = f.l.WithdrawFees(f.ctx, admin)
	require.NoError(t, err)
	_, err = f.l.ClaimPayout(f.ctx, alice)
	require.NoError(t, err)
	require.NoError(t, f.l.RevokeOrganizer(f.ctx, admin, organizer))
	return f
}

func TestReplayReproducesLedger(t *testing.T) {
	f := busyLedger(t)
	entries := f.l.Entries(1, 0)

	replayed, err := ledger.Replay(f.ctx, ledger.Options{Admin: admin, ListingFee: listingFee}, entries)
	require.NoError(t, err)
	require.NoError(t, replayed.Verify())

	assert.Equal(t, f.l.Stats(), replayed.Stats())
	for id := uint64(1); id <= f.l.TotalEvents(); id++ {
		want, _ := f.l.GetEvent(id)
		got, err := replayed.GetEvent(id)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	for id := uint64(1); id <= f.l.TotalTickets(); id++ {
		want, _ := f.l.GetTicket(id)
		got, err := replayed.GetTicket(id)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	for _, a := range []models.Address{admin, organizer, alice, bob, carol} {
		assert.Equal(t, f.l.PendingPayout(a), replayed.PendingPayout(a), a)
	}
	assert.False(t, replayed.IsApprovedOrganizer(organizer))
}

func TestReplayRejectsTamperedJournal(t *testing.T) {
	f := busyLedger(t)

	tampered := f.l.Entries(1, 0)
	for i := range tampered {
		if tampered[i].Kind == models.EntryOrganizerWithdraw {
			tampered[i].Amount *= 2
		}
	}
	_, err := ledger.Replay(f.ctx, ledger.Options{Admin: admin, ListingFee: listingFee}, tampered)
	assert.ErrorIs(t, err, ledger.ErrCorruptJournal)

	dropped := f.l.Entries(1, 0)
	dropped = append(dropped[:3], dropped[4:]...)
	_, err = ledger.Replay(f.ctx, ledger.Options{Admin: admin, ListingFee: listingFee}, dropped)
	assert.ErrorIs(t, err, ledger.ErrCorruptJournal)
}

func TestReplayRejectsForgedButChainedEntry(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.l.ApproveOrganizer(f.ctx, admin, organizer))
	entries := f.l.Entries(1, 0)

	// A correctly hashed entry for an operation the ledger would refuse.
	other, err := ledger.New(ledger.Options{Admin: alice, ListingFee: listingFee, Clock: f.clock.Now})
	require.NoError(t, err)
	require.NoError(t, other.ApproveOrganizer(f.ctx, alice, bob))

	_, err = ledger.Replay(f.ctx, ledger.Options{Admin: admin, ListingFee: listingFee}, other.Entries(1, 0))
	assert.ErrorIs(t, err, ledger.ErrCorruptJournal)
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	_, err = ledger.Replay(f.ctx, ledger.Options{Admin: admin, ListingFee: listingFee}, entries)
	assert.NoError(t, err)
}

func TestReplayPinsClockToEntries(t *testing.T) {
	f := newFixture(t)
	id := f.createEvent(t, f.params())
	tokenID := f.mint(t, alice, id, 0)
	f.toEventStart(t, id)
	f.clock.Advance(49 * time.Hour)
	_, err := f.l.RefundAttendee(f.ctx, alice, tokenID)
	require.NoError(t, err)

	// Replaying long after the fact must not change the creation checks.
	_, err = ledger.Replay(f.ctx, ledger.Options{Admin: admin, ListingFee: listingFee, Clock: func() time.Time {
		return time.Unix(4_000_000_000, 0)
	}}, f.l.Entries(1, 0))
	assert.NoError(t, err)
}

// op decodes a random integer into one ledger call with a random actor.
func applyRandomOp(f *fixture, n int) {
	actors := []models.Address{admin, organizer, alice, bob, carol}
	actor := actors[n%len(actors)]
	n /= len(actors)
	kind := n % 14
	n /= 14
	target := uint64(n%4) + 1
	amount := uint64(n%3) * 50

	ctx := f.ctx
	switch kind {
	case 0:
		_ = f.l.ApproveOrganizer(ctx, actor, actors[n%len(actors)])
	case 1:
		_ = f.l.RevokeOrganizer(ctx, actor, actors[n%len(actors)])
	case 2:
		p := f.params()
		p.MaxSeats = target
		_, _ = f.l.CreateEvent(ctx, actor, p, listingFee)
	case 3:
		_ = f.l.CancelEvent(ctx, actor, target)
	case 4:
		_ = f.l.MarkEventOccurred(ctx, actor, target)
	case 5, 6:
		_, _ = f.l.Mint(ctx, actor, target, uint64(n%3), 100)
	case 7:
		_ = f.l.ListForSale(ctx, actor, target, 100+amount)
	case 8:
		_ = f.l.BuyResale(ctx, actor, target, 100+amount)
	case 9:
		_, _ = f.l.WithdrawOrganizer(ctx, actor, target)
	case 10:
		_, _ = f.l.RefundAttendee(ctx, actor, target)
	case 11:
		_ = f.l.CheckIn(ctx, actor, target)
	case 12:
		_, _ = f.l.ClaimPayout(ctx, actor)
	case 13:
		_, _ = f.l.WithdrawFees(ctx, actor)
	}
	if n%5 == 0 {
		f.clock.Advance(time.Duration(n%90) * time.Hour)
	}
}

func TestLedgerInvariantsHoldForRandomOperations(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 60
	properties := gopter.NewProperties(parameters)

	properties.Property("every reachable state verifies", prop.ForAll(
		func(ops []int) bool {
			f := newFixture(t)
			_ = f.l.ApproveOrganizer(f.ctx, admin, organizer)
			for _, n := range ops {
				applyRandomOp(f, n)
				if err := f.l.Verify(); err != nil {
					t.Log(err)
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 1_000_000)),
	))

	properties.Property("replay reproduces the same head and stats", prop.ForAll(
		func(ops []int) bool {
			f := newFixture(t)
			_ = f.l.ApproveOrganizer(f.ctx, admin, organizer)
			for _, n := range ops {
				applyRandomOp(f, n)
			}
			replayed, err := ledger.Replay(f.ctx, ledger.Options{Admin: admin, ListingFee: listingFee}, f.l.Entries(1, 0))
			if err != nil {
				t.Log(err)
				return false
			}
			seq, hash := f.l.Head()
			rseq, rhash := replayed.Head()
			return seq == rseq && hash == rhash && f.l.Stats() == replayed.Stats()
		},
		gen.SliceOf(gen.IntRange(0, 1_000_000)),
	))

	properties.Property("seats available plus minted equals capacity", prop.ForAll(
		func(ops []int) bool {
			f := newFixture(t)
			_ = f.l.ApproveOrganizer(f.ctx, admin, organizer)
			for _, n := range ops {
				applyRandomOp(f, n)
			}
			minted := make(map[uint64]uint64)
			for id := uint64(1); id <= f.l.TotalTickets(); id++ {
				ticket, err := f.l.GetTicket(id)
				if err != nil {
					return false
				}
				minted[ticket.OccasionID]++
			}
			for id := uint64(1); id <= f.l.TotalEvents(); id++ {
				ev, err := f.l.GetEvent(id)
				if err != nil || ev.SeatsAvailable+minted[id] != ev.MaxSeats {
					return false
				}
				seats, err := f.l.SeatsTaken(id)
				if err != nil || uint64(len(seats)) != minted[id] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 1_000_000)),
	))

	properties.TestingRun(t)
}
