package ledger

import (
	"context"
	"fmt"
	"math"

	"ticket-ledger/internal/models"
)

// RefundGracePeriod is how long after an event's start an attendee may claim
// a refund if the organizer never marked it as occurred.
const RefundGracePeriod uint64 = 48 * 60 * 60

// WithdrawOrganizer moves an occurred event's escrow into the organizer's
// payout account and returns the amount.
func (l *Ledger) WithdrawOrganizer(ctx context.Context, caller models.Address, eventID uint64) (uint64, error) {
	var amount uint64
	err := l.mutate(ctx, "withdraw_organizer", caller, func(tx *txn) error {
		ev, err := tx.event(eventID)
		if err != nil {
			return fmt.Errorf("withdraw: %w", err)
		}
		if ev.Organizer != caller {
			return fmt.Errorf("withdraw event %d: %s is not the organizer: %w", eventID, caller, ErrUnauthorized)
		}
		if !ev.Occurred || ev.Cancelled {
			return fmt.Errorf("withdraw event %d: event has not occurred: %w", eventID, ErrInvalidState)
		}
		if ev.EscrowBalance == 0 {
			return fmt.Errorf("withdraw event %d: %w", eventID, ErrNothingToWithdraw)
		}

		amount = ev.EscrowBalance
		if err := tx.credit(caller, amount); err != nil {
			return fmt.Errorf("withdraw event %d: %w", eventID, err)
		}
		ev.EscrowBalance = 0
		tx.putEvent(ev)
		tx.record(models.Entry{Kind: models.EntryOrganizerWithdraw, EventID: eventID, Amount: amount})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return amount, nil
}

// RefundAttendee returns a ticket's mint price from escrow to its owner when
// the event was cancelled, or when it was never marked as occurred and the
// grace period has passed without a check-in.
func (l *Ledger) RefundAttendee(ctx context.Context, caller models.Address, tokenID uint64) (uint64, error) {
	var amount uint64
	err := l.mutate(ctx, "refund_attendee", caller, func(tx *txn) error {
		t, err := tx.ticket(tokenID)
		if err != nil {
			return fmt.Errorf("refund: %w", err)
		}
		if t.Owner != caller {
			return fmt.Errorf("refund ticket %d: %s is not the owner: %w", tokenID, caller, ErrUnauthorized)
		}
		if t.Refunded {
			return fmt.Errorf("refund ticket %d: %w", tokenID, ErrAlreadyRefunded)
		}
		ev, err := tx.event(t.OccasionID)
		if err != nil {
			return fmt.Errorf("refund: %w", err)
		}
		if !refundable(t, ev, tx.unix()) {
			return fmt.Errorf("refund ticket %d: %w", tokenID, ErrNotEligible)
		}
		if ev.EscrowBalance < t.MintPrice {
			return fmt.Errorf("refund ticket %d: escrow %d short of %d: %w", tokenID, ev.EscrowBalance, t.MintPrice, ErrInvalidState)
		}

		amount = t.MintPrice
		if err := tx.credit(caller, amount); err != nil {
			return fmt.Errorf("refund ticket %d: %w", tokenID, err)
		}
		ev.EscrowBalance -= amount
		t.Refunded = true
		t.IsForSale = false
		t.ResalePrice = 0
		tx.putEvent(ev)
		tx.putTicket(t)
		tx.record(models.Entry{Kind: models.EntryAttendeeRefund, EventID: ev.ID, TokenID: tokenID, Amount: amount})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return amount, nil
}

func refundable(t *models.Ticket, ev *models.Event, now uint64) bool {
	if ev.Cancelled {
		return true
	}
	if t.CheckedIn || ev.Occurred {
		return false
	}
	if ev.EventTimestamp > math.MaxUint64-RefundGracePeriod {
		return false
	}
	return now > ev.EventTimestamp+RefundGracePeriod
}

func (l *Ledger) PendingPayout(addr models.Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.payouts[addr]
}

// ClaimPayout empties caller's payout account. The returned amount leaves the
// ledger through the payout-claimed journal entry.
func (l *Ledger) ClaimPayout(ctx context.Context, caller models.Address) (uint64, error) {
	var amount uint64
	err := l.mutate(ctx, "claim_payout", caller, func(tx *txn) error {
		if tx.pending(caller) == 0 {
			return fmt.Errorf("claim payout for %s: %w", caller, ErrNothingToWithdraw)
		}
		amount = tx.debitAll(caller)
		tx.record(models.Entry{Kind: models.EntryPayoutClaimed, Amount: amount})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return amount, nil
}

func (l *Ledger) FeeBalance() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.feeBalance
}

// WithdrawFees moves collected listing fees into the administrator's payout
// account.
func (l *Ledger) WithdrawFees(ctx context.Context, caller models.Address) (uint64, error) {
	var amount uint64
	err := l.mutate(ctx, "withdraw_fees", caller, func(tx *txn) error {
		if caller != l.admin {
			return fmt.Errorf("withdraw fees: %s is not the administrator: %w", caller, ErrUnauthorized)
		}
		amount = tx.feeBalance()
		if amount == 0 {
			return fmt.Errorf("withdraw fees: %w", ErrNothingToWithdraw)
		}
		if err := tx.credit(caller, amount); err != nil {
			return fmt.Errorf("withdraw fees: %w", err)
		}
		tx.setFeeBalance(0)
		tx.record(models.Entry{Kind: models.EntryFeesWithdrawn, Amount: amount})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return amount, nil
}
