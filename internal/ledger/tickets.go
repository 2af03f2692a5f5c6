package ledger

import (
	"context"
	"fmt"

	"ticket-ledger/internal/models"
)

// Mint issues a ticket for seat to caller. payment must equal the event price
// and is credited to the event escrow.
func (l *Ledger) Mint(ctx context.Context, caller models.Address, eventID, seat, payment uint64) (uint64, error) {
	var tokenID uint64
	err := l.mutate(ctx, "mint", caller, func(tx *txn) error {
		ev, err := tx.event(eventID)
		if err != nil {
			return fmt.Errorf("mint: %w", err)
		}
		if ev.Cancelled {
			return fmt.Errorf("mint: event %d is cancelled: %w", eventID, ErrInvalidState)
		}
		if ev.Occurred {
			return fmt.Errorf("mint: event %d has already occurred: %w", eventID, ErrInvalidState)
		}
		if ev.SeatsAvailable == 0 {
			return fmt.Errorf("mint: event %d is sold out: %w", eventID, ErrNoSeats)
		}
		if seat >= ev.MaxSeats {
			return fmt.Errorf("mint: seat %d outside 0..%d: %w", seat, ev.MaxSeats-1, ErrSeatOutOfRange)
		}
		if tx.seatTaken(eventID, seat) {
			return fmt.Errorf("mint: seat %d of event %d: %w", seat, eventID, ErrSeatTaken)
		}
		if payment < ev.Price {
			return fmt.Errorf("mint: paid %d, price is %d: %w", payment, ev.Price, ErrInsufficientPayment)
		}
		if payment > ev.Price {
			return fmt.Errorf("mint: paid %d, price is %d: %w", payment, ev.Price, ErrInvalidInput)
		}
		escrow, ok := addUint(ev.EscrowBalance, payment)
		if !ok {
			return fmt.Errorf("mint: escrow of event %d would overflow: %w", eventID, ErrInvalidInput)
		}

		tokenID = tx.nextTokenID()
		ev.SeatsAvailable--
		ev.EscrowBalance = escrow
		tx.putEvent(ev)
		tx.putTicket(&models.Ticket{
			TokenID:       tokenID,
			OccasionID:    eventID,
			SeatNumber:    seat,
			Owner:         caller,
			OriginalOwner: caller,
			MintPrice:     payment,
			MintedAt:      tx.stamp(),
		})
		tx.record(models.Entry{Kind: models.EntryTicketMinted, EventID: eventID, TokenID: tokenID, Seat: seat, Amount: payment})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return tokenID, nil
}

func (l *Ledger) GetTicket(tokenID uint64) (models.Ticket, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if tokenID == 0 || tokenID > uint64(len(l.tickets)) {
		return models.Ticket{}, fmt.Errorf("ticket %d: %w", tokenID, ErrNotFound)
	}
	return *l.tickets[tokenID-1], nil
}

func (l *Ledger) OwnerOf(tokenID uint64) (models.Address, error) {
	t, err := l.GetTicket(tokenID)
	if err != nil {
		return "", err
	}
	return t.Owner, nil
}

func (l *Ledger) TotalTickets() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.tickets))
}

// TicketsOf lists the token ids currently owned by owner, ascending.
func (l *Ledger) TicketsOf(owner models.Address) []uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := []uint64{}
	for _, t := range l.tickets {
		if t.Owner == owner {
			ids = append(ids, t.TokenID)
		}
	}
	return ids
}
