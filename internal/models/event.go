package models

import (
	"time"

	"github.com/uptrace/bun"
)

// EventParams carries the organizer-supplied attributes of a new event.
type EventParams struct {
	Title          string `json:"title"`
	Price          uint64 `json:"price,string"`
	MaxSeats       uint64 `json:"maxSeats,string"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	Location       string `json:"location"`
	MaxResalePrice uint64 `json:"maxResalePrice,string"`
	EventTimestamp uint64 `json:"eventTimestamp,string"`
	ImageURL       string `json:"imageUrl,omitempty"`
}

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID             uint64    `bun:"id,pk" json:"id,string"`
	Title          string    `bun:"title,notnull" json:"title"`
	Price          uint64    `bun:"price,notnull" json:"price,string"`
	SeatsAvailable uint64    `bun:"seats_available,notnull" json:"seatsAvailable,string"`
	MaxSeats       uint64    `bun:"max_seats,notnull" json:"maxSeats,string"`
	Date           string    `bun:"date" json:"date"`
	Time           string    `bun:"time" json:"time"`
	Location       string    `bun:"location" json:"location"`
	MaxResalePrice uint64    `bun:"max_resale_price,notnull" json:"maxResalePrice,string"`
	Organizer      Address   `bun:"organizer,notnull" json:"organizer"`
	EventTimestamp uint64    `bun:"event_timestamp,notnull" json:"eventTimestamp,string"`
	ImageURL       string    `bun:"image_url" json:"imageUrl,omitempty"`
	Cancelled      bool      `bun:"cancelled,notnull" json:"cancelled"`
	Occurred       bool      `bun:"occurred,notnull" json:"occurred"`
	EscrowBalance  uint64    `bun:"escrow_balance,notnull" json:"escrowBalance,string"`
	CreatedAt      time.Time `bun:"created_at,notnull" json:"createdAt"`
}

// Resolved reports whether the event has reached a terminal lifecycle state.
func (e *Event) Resolved() bool {
	return e.Cancelled || e.Occurred
}
