package ledger

import (
	"context"
	"fmt"

	"ticket-ledger/internal/models"
)

// ApproveOrganizer adds addr to the approved-organizer set. Only the
// administrator may call it, and never for its own address.
func (l *Ledger) ApproveOrganizer(ctx context.Context, caller, addr models.Address) error {
	return l.mutate(ctx, "approve_organizer", caller, func(tx *txn) error {
		if caller != l.admin {
			return fmt.Errorf("approve organizer: %s is not the administrator: %w", caller, ErrUnauthorized)
		}
		if addr.IsZero() {
			return fmt.Errorf("approve organizer: address is required: %w", ErrInvalidInput)
		}
		if addr == caller {
			return fmt.Errorf("approve organizer: cannot approve self: %w", ErrInvalidInput)
		}
		if tx.approved(addr) {
			return fmt.Errorf("approve organizer: %s already approved: %w", addr, ErrInvalidState)
		}

		tx.putOrganizer(addr, true)
		tx.record(models.Entry{Kind: models.EntryOrganizerApproved, Counterparty: addr})
		return nil
	})
}

// RevokeOrganizer removes addr from the approved set. Events the organizer
// already created stay under their control.
func (l *Ledger) RevokeOrganizer(ctx context.Context, caller, addr models.Address) error {
	return l.mutate(ctx, "revoke_organizer", caller, func(tx *txn) error {
		if caller != l.admin {
			return fmt.Errorf("revoke organizer: %s is not the administrator: %w", caller, ErrUnauthorized)
		}
		if addr.IsZero() {
			return fmt.Errorf("revoke organizer: address is required: %w", ErrInvalidInput)
		}
		if !tx.approved(addr) {
			return fmt.Errorf("revoke organizer: %s is not approved: %w", addr, ErrInvalidState)
		}

		tx.putOrganizer(addr, false)
		tx.record(models.Entry{Kind: models.EntryOrganizerRevoked, Counterparty: addr})
		return nil
	})
}

func (l *Ledger) IsApprovedOrganizer(addr models.Address) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	o, ok := l.organizers[addr]
	return ok && o.Approved
}

// OrganizerEvents lists the ids of every event addr created, oldest first.
func (l *Ledger) OrganizerEvents(addr models.Address) []uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]uint64{}, l.organizerEvents[addr]...)
}
