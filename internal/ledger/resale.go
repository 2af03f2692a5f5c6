package ledger

import (
	"context"
	"fmt"

	"ticket-ledger/internal/models"
)

// resellable rejects tickets that can no longer change hands.
func resellable(t *models.Ticket, ev *models.Event) error {
	switch {
	case t.CheckedIn:
		return fmt.Errorf("ticket %d is checked in: %w", t.TokenID, ErrInvalidState)
	case t.Refunded:
		return fmt.Errorf("ticket %d is refunded: %w", t.TokenID, ErrInvalidState)
	case ev.Cancelled:
		return fmt.Errorf("event %d is cancelled: %w", ev.ID, ErrInvalidState)
	}
	return nil
}

// ListForSale offers a ticket for resale at price, capped by the event's
// maxResalePrice. Listing an already listed ticket updates its price.
func (l *Ledger) ListForSale(ctx context.Context, caller models.Address, tokenID, price uint64) error {
	return l.mutate(ctx, "list_for_sale", caller, func(tx *txn) error {
		t, err := tx.ticket(tokenID)
		if err != nil {
			return fmt.Errorf("list: %w", err)
		}
		if t.Owner != caller {
			return fmt.Errorf("list ticket %d: %s is not the owner: %w", tokenID, caller, ErrUnauthorized)
		}
		ev, err := tx.event(t.OccasionID)
		if err != nil {
			return fmt.Errorf("list: %w", err)
		}
		if err := resellable(t, ev); err != nil {
			return fmt.Errorf("list: %w", err)
		}
		if price > ev.MaxResalePrice {
			return fmt.Errorf("list ticket %d: price %d above cap %d: %w", tokenID, price, ev.MaxResalePrice, ErrPriceCapExceeded)
		}

		t.IsForSale = true
		t.ResalePrice = price
		tx.putTicket(t)
		tx.record(models.Entry{Kind: models.EntryTicketListed, EventID: t.OccasionID, TokenID: tokenID, Amount: price})
		return nil
	})
}

func (l *Ledger) Unlist(ctx context.Context, caller models.Address, tokenID uint64) error {
	return l.mutate(ctx, "unlist", caller, func(tx *txn) error {
		t, err := tx.ticket(tokenID)
		if err != nil {
			return fmt.Errorf("unlist: %w", err)
		}
		if t.Owner != caller {
			return fmt.Errorf("unlist ticket %d: %s is not the owner: %w", tokenID, caller, ErrUnauthorized)
		}
		if !t.IsForSale {
			return fmt.Errorf("unlist ticket %d: not listed: %w", tokenID, ErrInvalidState)
		}

		t.IsForSale = false
		t.ResalePrice = 0
		tx.putTicket(t)
		tx.record(models.Entry{Kind: models.EntryTicketUnlisted, EventID: t.OccasionID, TokenID: tokenID})
		return nil
	})
}

// BuyResale transfers a listed ticket to caller. The whole payment is
// credited to the seller's payout account in the same commit.
func (l *Ledger) BuyResale(ctx context.Context, caller models.Address, tokenID, payment uint64) error {
	return l.mutate(ctx, "buy_resale", caller, func(tx *txn) error {
		t, err := tx.ticket(tokenID)
		if err != nil {
			return fmt.Errorf("buy: %w", err)
		}
		if !t.IsForSale {
			return fmt.Errorf("buy ticket %d: not listed: %w", tokenID, ErrInvalidState)
		}
		ev, err := tx.event(t.OccasionID)
		if err != nil {
			return fmt.Errorf("buy: %w", err)
		}
		if err := resellable(t, ev); err != nil {
			return fmt.Errorf("buy: %w", err)
		}
		if t.Owner == caller {
			return fmt.Errorf("buy ticket %d: %w", tokenID, ErrSelfPurchase)
		}
		if payment < t.ResalePrice {
			return fmt.Errorf("buy ticket %d: paid %d, asking %d: %w", tokenID, payment, t.ResalePrice, ErrInsufficientPayment)
		}
		if payment > t.ResalePrice {
			return fmt.Errorf("buy ticket %d: paid %d, asking %d: %w", tokenID, payment, t.ResalePrice, ErrInvalidInput)
		}

		seller := t.Owner
		if err := tx.credit(seller, payment); err != nil {
			return fmt.Errorf("buy ticket %d: %w", tokenID, err)
		}
		t.Owner = caller
		t.IsForSale = false
		t.ResalePrice = 0
		tx.putTicket(t)
		tx.record(models.Entry{
			Kind:         models.EntryTicketSold,
			EventID:      t.OccasionID,
			TokenID:      tokenID,
			Counterparty: seller,
			Amount:       payment,
		})
		return nil
	})
}
