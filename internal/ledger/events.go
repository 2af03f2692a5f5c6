package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"ticket-ledger/internal/models"
)

// CreateEvent registers a new event owned by caller. fee must equal the
// listing fee exactly.
func (l *Ledger) CreateEvent(ctx context.Context, caller models.Address, p models.EventParams, fee uint64) (uint64, error) {
	var id uint64
	err := l.mutate(ctx, "create_event", caller, func(tx *txn) error {
		if !tx.approved(caller) {
			return fmt.Errorf("create event: %s is not an approved organizer: %w", caller, ErrUnauthorized)
		}
		if strings.TrimSpace(p.Title) == "" {
			return fmt.Errorf("create event: title is required: %w", ErrInvalidInput)
		}
		if p.MaxSeats < 1 {
			return fmt.Errorf("create event: maxSeats must be at least 1: %w", ErrInvalidInput)
		}
		if p.MaxResalePrice < p.Price {
			return fmt.Errorf("create event: maxResalePrice %d below price %d: %w", p.MaxResalePrice, p.Price, ErrInvalidInput)
		}
		if p.EventTimestamp <= tx.unix() {
			return fmt.Errorf("create event: eventTimestamp %d is not in the future: %w", p.EventTimestamp, ErrInvalidInput)
		}
		if fee < l.listingFee {
			return fmt.Errorf("create event: fee %d below listing fee %d: %w", fee, l.listingFee, ErrInsufficientFee)
		}
		if fee > l.listingFee {
			return fmt.Errorf("create event: fee %d exceeds listing fee %d: %w", fee, l.listingFee, ErrInvalidInput)
		}
		fees, ok := addUint(tx.feeBalance(), fee)
		if !ok {
			return fmt.Errorf("create event: fee balance would overflow: %w", ErrInvalidInput)
		}
		details, err := canonicalJSON(p)
		if err != nil {
			return fmt.Errorf("create event: %w", err)
		}

		id = tx.nextEventID()
		tx.putEvent(&models.Event{
			ID:             id,
			Title:          p.Title,
			Price:          p.Price,
			SeatsAvailable: p.MaxSeats,
			MaxSeats:       p.MaxSeats,
			Date:           p.Date,
			Time:           p.Time,
			Location:       p.Location,
			MaxResalePrice: p.MaxResalePrice,
			Organizer:      caller,
			EventTimestamp: p.EventTimestamp,
			ImageURL:       p.ImageURL,
			CreatedAt:      tx.stamp(),
		})
		tx.setFeeBalance(fees)
		tx.record(models.Entry{Kind: models.EntryEventCreated, EventID: id, Amount: fee, Details: string(details)})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// CancelEvent permanently cancels an event before it starts, making every
// ticket refundable.
func (l *Ledger) CancelEvent(ctx context.Context, caller models.Address, eventID uint64) error {
	return l.mutate(ctx, "cancel_event", caller, func(tx *txn) error {
		ev, err := tx.event(eventID)
		if err != nil {
			return fmt.Errorf("cancel event: %w", err)
		}
		if ev.Organizer != caller {
			return fmt.Errorf("cancel event %d: %s is not the organizer: %w", eventID, caller, ErrUnauthorized)
		}
		if ev.Resolved() {
			return fmt.Errorf("cancel event %d: already cancelled or occurred: %w", eventID, ErrInvalidState)
		}
		if tx.unix() >= ev.EventTimestamp {
			return fmt.Errorf("cancel event %d: event has started: %w", eventID, ErrInvalidState)
		}

		ev.Cancelled = true
		tx.putEvent(ev)
		tx.record(models.Entry{Kind: models.EntryEventCancelled, EventID: eventID})
		return nil
	})
}

// MarkEventOccurred records that an event took place, unlocking its escrow
// for the organizer.
func (l *Ledger) MarkEventOccurred(ctx context.Context, caller models.Address, eventID uint64) error {
	return l.mutate(ctx, "mark_event_occurred", caller, func(tx *txn) error {
		ev, err := tx.event(eventID)
		if err != nil {
			return fmt.Errorf("mark occurred: %w", err)
		}
		if ev.Organizer != caller {
			return fmt.Errorf("mark occurred %d: %s is not the organizer: %w", eventID, caller, ErrUnauthorized)
		}
		if ev.Resolved() {
			return fmt.Errorf("mark occurred %d: already cancelled or occurred: %w", eventID, ErrInvalidState)
		}
		if tx.unix() < ev.EventTimestamp {
			return fmt.Errorf("mark occurred %d: event has not started: %w", eventID, ErrInvalidState)
		}

		ev.Occurred = true
		tx.putEvent(ev)
		tx.record(models.Entry{Kind: models.EntryEventOccurred, EventID: eventID})
		return nil
	})
}

func (l *Ledger) GetEvent(eventID uint64) (models.Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if eventID == 0 || eventID > uint64(len(l.events)) {
		return models.Event{}, fmt.Errorf("event %d: %w", eventID, ErrNotFound)
	}
	return *l.events[eventID-1], nil
}

func (l *Ledger) TotalEvents() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.events))
}

// SeatsTaken returns the minted seat numbers of an event in ascending order.
func (l *Ledger) SeatsTaken(eventID uint64) ([]uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if eventID == 0 || eventID > uint64(len(l.events)) {
		return nil, fmt.Errorf("event %d: %w", eventID, ErrNotFound)
	}
	seats := make([]uint64, 0, len(l.seats[eventID-1]))
	for seat := range l.seats[eventID-1] {
		seats = append(seats, seat)
	}
	sort.Slice(seats, func(i, j int) bool { return seats[i] < seats[j] })
	return seats, nil
}
