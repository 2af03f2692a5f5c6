package ledger

import (
	"context"
	"fmt"

	"ticket-ledger/internal/models"
)

// CheckIn marks a ticket as used at the door. Only the organizer of the
// ticket's event may check it in, and only once.
func (l *Ledger) CheckIn(ctx context.Context, caller models.Address, tokenID uint64) error {
	return l.mutate(ctx, "check_in", caller, func(tx *txn) error {
		t, err := tx.ticket(tokenID)
		if err != nil {
			return fmt.Errorf("check in: %w", err)
		}
		ev, err := tx.event(t.OccasionID)
		if err != nil {
			return fmt.Errorf("check in: %w", err)
		}
		if ev.Organizer != caller {
			return fmt.Errorf("check in ticket %d: %s is not the organizer: %w", tokenID, caller, ErrUnauthorized)
		}
		if t.CheckedIn {
			return fmt.Errorf("check in ticket %d: %w", tokenID, ErrAlreadyCheckedIn)
		}
		if t.Refunded {
			return fmt.Errorf("check in ticket %d: refunded: %w", tokenID, ErrInvalidState)
		}
		if ev.Cancelled {
			return fmt.Errorf("check in ticket %d: event %d is cancelled: %w", tokenID, ev.ID, ErrInvalidState)
		}

		t.CheckedIn = true
		t.CheckedInAt = tx.stamp()
		t.IsForSale = false
		t.ResalePrice = 0
		tx.putTicket(t)
		tx.record(models.Entry{Kind: models.EntryTicketCheckedIn, EventID: ev.ID, TokenID: tokenID, Counterparty: t.Owner})
		return nil
	})
}

func (l *Ledger) IsCheckedIn(tokenID uint64) (bool, error) {
	t, err := l.GetTicket(tokenID)
	if err != nil {
		return false, err
	}
	return t.CheckedIn, nil
}
