package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"ticket-ledger/internal/logger"
	"ticket-ledger/internal/metrics"
	"ticket-ledger/internal/models"
)

// Store persists committed changes. Commit must apply the whole changeset in
// one transaction or nothing at all.
type Store interface {
	Commit(ctx context.Context, cs *Changeset) error
	Load(ctx context.Context) (*Snapshot, error)
}

// Publisher forwards committed journal entries to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, entries []models.Entry) error
}

// Changeset is every row touched by one mutation plus its journal entries.
type Changeset struct {
	Events     []models.Event
	Tickets    []models.Ticket
	Organizers []models.Organizer
	Accounts   []models.Account
	State      *models.LedgerState
	Entries    []models.Entry
}

// Snapshot is the full persisted ledger as read back from a Store.
type Snapshot struct {
	Events     []models.Event
	Tickets    []models.Ticket
	Organizers []models.Organizer
	Accounts   []models.Account
	State      models.LedgerState
	Entries    []models.Entry
}

type Options struct {
	Admin      models.Address
	ListingFee uint64
	Clock      func() time.Time
	Store      Store
	Publisher  Publisher
	Logger     *logger.Logger
}

type Stats struct {
	TotalEvents  uint64 `json:"totalEvents,string"`
	TotalTickets uint64 `json:"totalTickets,string"`
	FeeBalance   uint64 `json:"feeBalance,string"`
	ListingFee   uint64 `json:"listingFee,string"`
	JournalSeq   uint64 `json:"journalSeq,string"`
	Admin        string `json:"admin"`
}

// Ledger is the authoritative event and ticket state machine. All mutations
// are serialized by mu; reads take the read lock and return copies.
type Ledger struct {
	mu sync.RWMutex

	admin      models.Address
	listingFee uint64
	now        func() time.Time

	events          []*models.Event
	tickets         []*models.Ticket
	seats           []map[uint64]uint64
	organizers      map[models.Address]*models.Organizer
	organizerEvents map[models.Address][]uint64
	payouts         map[models.Address]uint64
	feeBalance      uint64
	journal         []models.Entry

	store     Store
	publisher Publisher
	log       *logger.Logger
}

func New(opts Options) (*Ledger, error) {
	if opts.Admin.IsZero() {
		return nil, fmt.Errorf("administrator address is required: %w", ErrInvalidInput)
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Ledger{
		admin:           opts.Admin,
		listingFee:      opts.ListingFee,
		now:             clock,
		organizers:      make(map[models.Address]*models.Organizer),
		organizerEvents: make(map[models.Address][]uint64),
		payouts:         make(map[models.Address]uint64),
		store:           opts.Store,
		publisher:       opts.Publisher,
		log:             opts.Logger,
	}, nil
}

// Open creates a ledger and restores it from opts.Store, refusing state that
// does not verify against its own journal.
func Open(ctx context.Context, opts Options) (*Ledger, error) {
	l, err := New(opts)
	if err != nil {
		return nil, err
	}
	if opts.Store == nil {
		return l, nil
	}

	snap, err := opts.Store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger snapshot: %w", err)
	}
	if err := l.restore(snap); err != nil {
		return nil, err
	}
	if err := l.Verify(); err != nil {
		return nil, err
	}

	l.log.LogLedger("RESTORE", "snapshot", fmt.Sprintf("%d events, %d tickets, %d journal entries",
		len(l.events), len(l.tickets), len(l.journal)))
	metrics.SetTotals(uint64(len(l.events)), uint64(len(l.tickets)), uint64(len(l.journal)))
	return l, nil
}

func (l *Ledger) restore(snap *Snapshot) error {
	if snap == nil {
		return nil
	}

	events := append([]models.Event(nil), snap.Events...)
	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })
	for i := range events {
		ev := events[i]
		if ev.ID != uint64(i)+1 {
			return fmt.Errorf("event ids are not dense at %d: %w", ev.ID, ErrCorruptJournal)
		}
		l.events = append(l.events, &ev)
		l.seats = append(l.seats, make(map[uint64]uint64))
		l.organizerEvents[ev.Organizer] = append(l.organizerEvents[ev.Organizer], ev.ID)
	}

	tickets := append([]models.Ticket(nil), snap.Tickets...)
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].TokenID < tickets[j].TokenID })
	for i := range tickets {
		t := tickets[i]
		if t.TokenID != uint64(i)+1 {
			return fmt.Errorf("token ids are not dense at %d: %w", t.TokenID, ErrCorruptJournal)
		}
		if t.OccasionID == 0 || t.OccasionID > uint64(len(l.events)) {
			return fmt.Errorf("ticket %d references unknown event %d: %w", t.TokenID, t.OccasionID, ErrCorruptJournal)
		}
		l.tickets = append(l.tickets, &t)
		l.seats[t.OccasionID-1][t.SeatNumber] = t.TokenID
	}

	for i := range snap.Organizers {
		o := snap.Organizers[i]
		l.organizers[o.Address] = &o
	}
	for _, a := range snap.Accounts {
		if a.Pending > 0 {
			l.payouts[a.Address] = a.Pending
		}
	}
	l.feeBalance = snap.State.FeeBalance

	entries := append([]models.Entry(nil), snap.Entries...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })
	l.journal = entries
	return nil
}

// mutate runs fn against a staging transaction under the write lock. Nothing
// in l changes unless fn succeeds and the store accepts the changeset.
func (l *Ledger) mutate(ctx context.Context, op string, caller models.Address, fn func(tx *txn) error) (err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveMutation(op, Code(err), time.Since(start))
	}()

	if caller.IsZero() {
		return fmt.Errorf("%s: caller address is required: %w", op, ErrUnauthorized)
	}

	l.mu.Lock()
	tx := l.begin(caller)
	if err = fn(tx); err != nil {
		l.mu.Unlock()
		return err
	}

	cs, err := tx.changeset()
	if err != nil {
		l.mu.Unlock()
		return fmt.Errorf("failed to seal %s: %w", op, err)
	}

	if l.store != nil {
		if err = l.store.Commit(ctx, cs); err != nil {
			l.mu.Unlock()
			l.log.Error("LEDGER", fmt.Sprintf("Commit of %s failed: %v", op, err))
			return fmt.Errorf("failed to commit %s: %w", op, err)
		}
	}

	l.apply(cs)
	totals := [3]uint64{uint64(len(l.events)), uint64(len(l.tickets)), uint64(len(l.journal))}
	l.mu.Unlock()

	metrics.SetTotals(totals[0], totals[1], totals[2])
	for _, e := range cs.Entries {
		l.log.LogLedger(string(e.Kind), describe(e), fmt.Sprintf("seq=%d actor=%s amount=%d", e.Seq, e.Actor, e.Amount))
	}

	if l.publisher != nil && len(cs.Entries) > 0 {
		if perr := l.publisher.Publish(ctx, cs.Entries); perr != nil {
			metrics.PublishFailed()
			l.log.Error("LEDGER", fmt.Sprintf("Failed to publish %s entries: %v", op, perr))
		}
	}
	return nil
}

func (l *Ledger) apply(cs *Changeset) {
	for i := range cs.Events {
		ev := cs.Events[i]
		idx := ev.ID - 1
		if idx < uint64(len(l.events)) {
			l.events[idx] = &ev
			continue
		}
		l.events = append(l.events, &ev)
		l.seats = append(l.seats, make(map[uint64]uint64))
		l.organizerEvents[ev.Organizer] = append(l.organizerEvents[ev.Organizer], ev.ID)
	}

	for i := range cs.Tickets {
		t := cs.Tickets[i]
		idx := t.TokenID - 1
		if idx < uint64(len(l.tickets)) {
			l.tickets[idx] = &t
			continue
		}
		l.tickets = append(l.tickets, &t)
		l.seats[t.OccasionID-1][t.SeatNumber] = t.TokenID
	}

	for i := range cs.Organizers {
		o := cs.Organizers[i]
		l.organizers[o.Address] = &o
	}

	for _, a := range cs.Accounts {
		if a.Pending == 0 {
			delete(l.payouts, a.Address)
			continue
		}
		l.payouts[a.Address] = a.Pending
	}

	if cs.State != nil {
		l.feeBalance = cs.State.FeeBalance
	}

	l.journal = append(l.journal, cs.Entries...)
}

func (l *Ledger) Admin() models.Address {
	return l.admin
}

func (l *Ledger) ListingFee() uint64 {
	return l.listingFee
}

func (l *Ledger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Stats{
		TotalEvents:  uint64(len(l.events)),
		TotalTickets: uint64(len(l.tickets)),
		FeeBalance:   l.feeBalance,
		ListingFee:   l.listingFee,
		JournalSeq:   uint64(len(l.journal)),
		Admin:        l.admin.String(),
	}
}

func describe(e models.Entry) string {
	switch {
	case e.TokenID != 0:
		return fmt.Sprintf("ticket %d", e.TokenID)
	case e.EventID != 0:
		return fmt.Sprintf("event %d", e.EventID)
	case !e.Counterparty.IsZero():
		return e.Counterparty.String()
	default:
		return e.Actor.String()
	}
}

// Publishers fans entries out to several publishers, attempting every one.
type Publishers []Publisher

func (ps Publishers) Publish(ctx context.Context, entries []models.Entry) error {
	var errs []error
	for _, p := range ps {
		if err := p.Publish(ctx, entries); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
