package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ticket-ledger/internal/models"
)

// Replay rebuilds a ledger by re-executing entries through the validating
// operations, with the clock pinned to each entry's timestamp. Every
// re-executed entry must hash to the recorded one.
func Replay(ctx context.Context, opts Options, entries []models.Entry) (*Ledger, error) {
	if err := VerifyChain(entries); err != nil {
		return nil, err
	}
	l, err := New(opts)
	if err != nil {
		return nil, err
	}

	clock := l.now
	defer func() { l.now = clock }()

	for _, e := range entries {
		at := e.At
		l.now = func() time.Time { return time.Unix(at, 0) }

		if err := l.replayEntry(ctx, e); err != nil {
			return nil, fmt.Errorf("replay entry %d (%s): %w: %w", e.Seq, e.Kind, ErrCorruptJournal, err)
		}
		seq, hash := l.Head()
		if seq != e.Seq || hash != e.Hash {
			return nil, fmt.Errorf("replay entry %d (%s): result diverges from journal: %w", e.Seq, e.Kind, ErrCorruptJournal)
		}
	}
	return l, nil
}

func (l *Ledger) replayEntry(ctx context.Context, e models.Entry) error {
	var err error
	switch e.Kind {
	case models.EntryOrganizerApproved:
		err = l.ApproveOrganizer(ctx, e.Actor, e.Counterparty)
	case models.EntryOrganizerRevoked:
		err = l.RevokeOrganizer(ctx, e.Actor, e.Counterparty)
	case models.EntryEventCreated:
		var p models.EventParams
		if err := json.Unmarshal([]byte(e.Details), &p); err != nil {
			return fmt.Errorf("failed to decode event parameters: %w", err)
		}
		_, err = l.CreateEvent(ctx, e.Actor, p, e.Amount)
	case models.EntryEventCancelled:
		err = l.CancelEvent(ctx, e.Actor, e.EventID)
	case models.EntryEventOccurred:
		err = l.MarkEventOccurred(ctx, e.Actor, e.EventID)
	case models.EntryTicketMinted:
		_, err = l.Mint(ctx, e.Actor, e.EventID, e.Seat, e.Amount)
	case models.EntryTicketListed:
		err = l.ListForSale(ctx, e.Actor, e.TokenID, e.Amount)
	case models.EntryTicketUnlisted:
		err = l.Unlist(ctx, e.Actor, e.TokenID)
	case models.EntryTicketSold:
		err = l.BuyResale(ctx, e.Actor, e.TokenID, e.Amount)
	case models.EntryOrganizerWithdraw:
		_, err = l.WithdrawOrganizer(ctx, e.Actor, e.EventID)
	case models.EntryAttendeeRefund:
		_, err = l.RefundAttendee(ctx, e.Actor, e.TokenID)
	case models.EntryTicketCheckedIn:
		err = l.CheckIn(ctx, e.Actor, e.TokenID)
	case models.EntryFeesWithdrawn:
		_, err = l.WithdrawFees(ctx, e.Actor)
	case models.EntryPayoutClaimed:
		_, err = l.ClaimPayout(ctx, e.Actor)
	default:
		return fmt.Errorf("unknown entry kind %q", e.Kind)
	}
	return err
}

// Verify checks the ledger invariants: seat conservation and uniqueness,
// escrow, payout and fee balances against journal sums, and the hash chain.
func (l *Ledger) Verify() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var errs []error
	if err := VerifyChain(l.journal); err != nil {
		errs = append(errs, err)
	}

	minted := make([]uint64, len(l.events))
	for i, t := range l.tickets {
		if t.TokenID != uint64(i)+1 {
			errs = append(errs, fmt.Errorf("ticket at %d has token id %d", i+1, t.TokenID))
			continue
		}
		if t.OccasionID == 0 || t.OccasionID > uint64(len(l.events)) {
			errs = append(errs, fmt.Errorf("ticket %d references unknown event %d", t.TokenID, t.OccasionID))
			continue
		}
		ev := l.events[t.OccasionID-1]
		if t.SeatNumber >= ev.MaxSeats {
			errs = append(errs, fmt.Errorf("ticket %d holds seat %d outside event %d", t.TokenID, t.SeatNumber, ev.ID))
		}
		if holder := l.seats[t.OccasionID-1][t.SeatNumber]; holder != t.TokenID {
			errs = append(errs, fmt.Errorf("seat %d of event %d held by %d, not ticket %d", t.SeatNumber, ev.ID, holder, t.TokenID))
		}
		if t.Owner.IsZero() {
			errs = append(errs, fmt.Errorf("ticket %d has no owner", t.TokenID))
		}
		minted[t.OccasionID-1]++
	}

	for i, ev := range l.events {
		if ev.ID != uint64(i)+1 {
			errs = append(errs, fmt.Errorf("event at %d has id %d", i+1, ev.ID))
			continue
		}
		if ev.Cancelled && ev.Occurred {
			errs = append(errs, fmt.Errorf("event %d is both cancelled and occurred", ev.ID))
		}
		if ev.SeatsAvailable+minted[i] != ev.MaxSeats {
			errs = append(errs, fmt.Errorf("event %d: %d available + %d minted != %d seats", ev.ID, ev.SeatsAvailable, minted[i], ev.MaxSeats))
		}
		if uint64(len(l.seats[i])) != minted[i] {
			errs = append(errs, fmt.Errorf("event %d: %d seats mapped for %d tickets", ev.ID, len(l.seats[i]), minted[i]))
		}
	}

	errs = append(errs, l.verifyBalances()...)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrCorruptJournal, errors.Join(errs...))
	}
	return nil
}

// verifyBalances recomputes every balance from the journal alone.
func (l *Ledger) verifyBalances() []error {
	var errs []error

	escrowIn := make(map[uint64]uint64)
	escrowOut := make(map[uint64]uint64)
	credited := make(map[models.Address]uint64)
	claimed := make(map[models.Address]uint64)
	var feesIn, feesOut, created, mints uint64

	for _, e := range l.journal {
		switch e.Kind {
		case models.EntryEventCreated:
			created++
			feesIn += e.Amount
		case models.EntryTicketMinted:
			mints++
			escrowIn[e.EventID] += e.Amount
		case models.EntryAttendeeRefund:
			escrowOut[e.EventID] += e.Amount
			credited[e.Actor] += e.Amount
		case models.EntryOrganizerWithdraw:
			escrowOut[e.EventID] += e.Amount
			credited[e.Actor] += e.Amount
		case models.EntryTicketSold:
			credited[e.Counterparty] += e.Amount
		case models.EntryFeesWithdrawn:
			feesOut += e.Amount
			credited[e.Actor] += e.Amount
		case models.EntryPayoutClaimed:
			claimed[e.Actor] += e.Amount
		}
	}

	if created != uint64(len(l.events)) {
		errs = append(errs, fmt.Errorf("journal creates %d events, ledger has %d", created, len(l.events)))
	}
	if mints != uint64(len(l.tickets)) {
		errs = append(errs, fmt.Errorf("journal mints %d tickets, ledger has %d", mints, len(l.tickets)))
	}

	for _, ev := range l.events {
		in, out := escrowIn[ev.ID], escrowOut[ev.ID]
		if out > in || in-out != ev.EscrowBalance {
			errs = append(errs, fmt.Errorf("event %d: escrow %d, journal says %d in and %d out", ev.ID, ev.EscrowBalance, in, out))
		}
	}

	seen := make(map[models.Address]bool)
	for addr, in := range credited {
		seen[addr] = true
		out := claimed[addr]
		if out > in || in-out != l.payouts[addr] {
			errs = append(errs, fmt.Errorf("payout account %s: pending %d, journal says %d credited and %d claimed", addr, l.payouts[addr], in, out))
		}
	}
	for addr, pending := range l.payouts {
		if !seen[addr] && pending != 0 {
			errs = append(errs, fmt.Errorf("payout account %s: pending %d with no journal credits", addr, pending))
		}
	}

	if feesOut > feesIn || feesIn-feesOut != l.feeBalance {
		errs = append(errs, fmt.Errorf("fee balance %d, journal says %d collected and %d withdrawn", l.feeBalance, feesIn, feesOut))
	}
	return errs
}
