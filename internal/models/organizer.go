package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Organizer is one row of the approval set. Revoked organizers keep their
// row with Approved=false so their existing events stay attributable.
type Organizer struct {
	bun.BaseModel `bun:"table:organizers"`

	Address   Address   `bun:"address,pk" json:"address"`
	Approved  bool      `bun:"approved,notnull" json:"approved"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}
