package holds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ticket-ledger/internal/logger"
	"ticket-ledger/internal/metrics"
	"ticket-ledger/internal/models"
)

const DefaultTTL = 5 * time.Minute

// ErrHeld is returned when a seat is reserved by another address.
var ErrHeld = errors.New("seat is held by another buyer")

// releaseScript deletes the hold only if it still belongs to the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Holds reserves seats in Redis for a short time while a buyer completes a
// mint. Holds are advisory; the ledger stays the authority on seat ownership.
type Holds struct {
	Client redis.Cmdable
	TTL    time.Duration
	log    *logger.Logger
}

func New(client redis.Cmdable, ttl time.Duration, log *logger.Logger) *Holds {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Holds{Client: client, TTL: ttl, log: log}
}

func key(eventID, seat uint64) string {
	return fmt.Sprintf("seat_hold:%d:%d", eventID, seat)
}

// Hold reserves the seat for holder. Holding a seat you already hold
// refreshes its expiry.
func (h *Holds) Hold(ctx context.Context, eventID, seat uint64, holder models.Address) (bool, error) {
	k := key(eventID, seat)
	ok, err := h.Client.SetNX(ctx, k, holder.String(), h.TTL).Result()
	if err != nil {
		metrics.SeatHold("error")
		return false, fmt.Errorf("failed to hold seat %d of event %d: %w", seat, eventID, err)
	}
	if ok {
		metrics.SeatHold("acquired")
		h.log.Debug("HOLDS", fmt.Sprintf("%s holds seat %d of event %d", holder, seat, eventID))
		return true, nil
	}

	current, err := h.Holder(ctx, eventID, seat)
	if err != nil {
		return false, err
	}
	if current != holder {
		metrics.SeatHold("contended")
		return false, nil
	}
	if err := h.Client.Expire(ctx, k, h.TTL).Err(); err != nil {
		return false, fmt.Errorf("failed to refresh hold: %w", err)
	}
	metrics.SeatHold("refreshed")
	return true, nil
}

// Release drops holder's reservation. Releasing a seat held by someone else,
// or not held at all, is a no-op.
func (h *Holds) Release(ctx context.Context, eventID, seat uint64, holder models.Address) error {
	if err := releaseScript.Run(ctx, h.Client, []string{key(eventID, seat)}, holder.String()).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release seat %d of event %d: %w", seat, eventID, err)
	}
	return nil
}

// Holder returns the current holder of a seat, or "" when it is free.
func (h *Holds) Holder(ctx context.Context, eventID, seat uint64) (models.Address, error) {
	val, err := h.Client.Get(ctx, key(eventID, seat)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read hold: %w", err)
	}
	return models.Address(val), nil
}

// CheckMint fails with ErrHeld when someone other than caller holds the seat.
func (h *Holds) CheckMint(ctx context.Context, eventID, seat uint64, caller models.Address) error {
	current, err := h.Holder(ctx, eventID, seat)
	if err != nil {
		return err
	}
	if current != "" && current != caller {
		return fmt.Errorf("seat %d of event %d: %w", seat, eventID, ErrHeld)
	}
	return nil
}
