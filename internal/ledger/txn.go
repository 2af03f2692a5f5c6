package ledger

import (
	"fmt"
	"math"
	"sort"
	"time"

	"ticket-ledger/internal/models"
)

// txn stages the rows a mutation wants to change. Reads fall through to the
// ledger for anything not yet staged.
type txn struct {
	l      *Ledger
	caller models.Address
	now    time.Time

	events     map[uint64]*models.Event
	tickets    map[uint64]*models.Ticket
	organizers map[models.Address]*models.Organizer
	accounts   map[models.Address]uint64
	fees       *uint64
	entries    []models.Entry
}

func (l *Ledger) begin(caller models.Address) *txn {
	return &txn{
		l:          l,
		caller:     caller,
		now:        l.now(),
		events:     make(map[uint64]*models.Event),
		tickets:    make(map[uint64]*models.Ticket),
		organizers: make(map[models.Address]*models.Organizer),
		accounts:   make(map[models.Address]uint64),
	}
}

// unix is the ledger clock in whole seconds; every time rule compares against it.
func (tx *txn) unix() uint64 {
	s := tx.now.Unix()
	if s < 0 {
		return 0
	}
	return uint64(s)
}

// stamp truncates to the second so a replay reproduces identical rows.
func (tx *txn) stamp() time.Time {
	return time.Unix(tx.now.Unix(), 0).UTC()
}

func (tx *txn) event(id uint64) (*models.Event, error) {
	if ev, ok := tx.events[id]; ok {
		return ev, nil
	}
	if id == 0 || id > uint64(len(tx.l.events)) {
		return nil, fmt.Errorf("event %d: %w", id, ErrNotFound)
	}
	cp := *tx.l.events[id-1]
	return &cp, nil
}

func (tx *txn) putEvent(ev *models.Event) {
	tx.events[ev.ID] = ev
}

func (tx *txn) nextEventID() uint64 {
	return uint64(len(tx.l.events)) + 1
}

func (tx *txn) ticket(id uint64) (*models.Ticket, error) {
	if t, ok := tx.tickets[id]; ok {
		return t, nil
	}
	if id == 0 || id > uint64(len(tx.l.tickets)) {
		return nil, fmt.Errorf("ticket %d: %w", id, ErrNotFound)
	}
	cp := *tx.l.tickets[id-1]
	return &cp, nil
}

func (tx *txn) putTicket(t *models.Ticket) {
	tx.tickets[t.TokenID] = t
}

func (tx *txn) nextTokenID() uint64 {
	return uint64(len(tx.l.tickets)) + 1
}

func (tx *txn) seatTaken(eventID, seat uint64) bool {
	for _, t := range tx.tickets {
		if t.OccasionID == eventID && t.SeatNumber == seat {
			return true
		}
	}
	if eventID == 0 || eventID > uint64(len(tx.l.seats)) {
		return false
	}
	_, taken := tx.l.seats[eventID-1][seat]
	return taken
}

func (tx *txn) approved(addr models.Address) bool {
	if o, ok := tx.organizers[addr]; ok {
		return o.Approved
	}
	o, ok := tx.l.organizers[addr]
	return ok && o.Approved
}

func (tx *txn) putOrganizer(addr models.Address, approved bool) {
	tx.organizers[addr] = &models.Organizer{Address: addr, Approved: approved, UpdatedAt: tx.stamp()}
}

func (tx *txn) pending(addr models.Address) uint64 {
	if v, ok := tx.accounts[addr]; ok {
		return v
	}
	return tx.l.payouts[addr]
}

func (tx *txn) credit(addr models.Address, amount uint64) error {
	total, ok := addUint(tx.pending(addr), amount)
	if !ok {
		return fmt.Errorf("payout account %s would overflow: %w", addr, ErrInvalidInput)
	}
	tx.accounts[addr] = total
	return nil
}

func (tx *txn) debitAll(addr models.Address) uint64 {
	amount := tx.pending(addr)
	tx.accounts[addr] = 0
	return amount
}

func (tx *txn) feeBalance() uint64 {
	if tx.fees != nil {
		return *tx.fees
	}
	return tx.l.feeBalance
}

func (tx *txn) setFeeBalance(v uint64) {
	tx.fees = &v
}

func (tx *txn) record(e models.Entry) {
	if e.Actor.IsZero() {
		e.Actor = tx.caller
	}
	tx.entries = append(tx.entries, e)
}

// changeset numbers, timestamps and chains the staged entries and collects
// every staged row in id order.
func (tx *txn) changeset() (*Changeset, error) {
	cs := &Changeset{}

	seq := uint64(len(tx.l.journal))
	prev := genesisHash
	if seq > 0 {
		prev = tx.l.journal[seq-1].Hash
	}
	for _, e := range tx.entries {
		seq++
		e.Seq = seq
		e.At = tx.now.Unix()
		e.PrevHash = prev
		h, err := hashEntry(e)
		if err != nil {
			return nil, err
		}
		e.Hash = h
		prev = h
		cs.Entries = append(cs.Entries, e)
	}

	for _, ev := range tx.events {
		cs.Events = append(cs.Events, *ev)
	}
	sort.Slice(cs.Events, func(i, j int) bool { return cs.Events[i].ID < cs.Events[j].ID })

	for _, t := range tx.tickets {
		cs.Tickets = append(cs.Tickets, *t)
	}
	sort.Slice(cs.Tickets, func(i, j int) bool { return cs.Tickets[i].TokenID < cs.Tickets[j].TokenID })

	for _, o := range tx.organizers {
		cs.Organizers = append(cs.Organizers, *o)
	}
	sort.Slice(cs.Organizers, func(i, j int) bool { return cs.Organizers[i].Address < cs.Organizers[j].Address })

	for addr, pending := range tx.accounts {
		cs.Accounts = append(cs.Accounts, models.Account{Address: addr, Pending: pending})
	}
	sort.Slice(cs.Accounts, func(i, j int) bool { return cs.Accounts[i].Address < cs.Accounts[j].Address })

	if tx.fees != nil {
		cs.State = &models.LedgerState{ID: 1, FeeBalance: *tx.fees}
	}
	return cs, nil
}

func addUint(a, b uint64) (uint64, bool) {
	if a > math.MaxUint64-b {
		return 0, false
	}
	return a + b, true
}
