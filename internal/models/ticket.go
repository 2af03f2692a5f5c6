package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	TokenID       uint64    `bun:"token_id,pk" json:"tokenId,string"`
	OccasionID    uint64    `bun:"occasion_id,notnull" json:"occasionId,string"`
	SeatNumber    uint64    `bun:"seat_number,notnull" json:"seatNumber,string"`
	Owner         Address   `bun:"owner,notnull" json:"owner"`
	OriginalOwner Address   `bun:"original_owner,notnull" json:"originalOwner"`
	IsForSale     bool      `bun:"is_for_sale,notnull" json:"isForSale"`
	ResalePrice   uint64    `bun:"resale_price,notnull" json:"resalePrice,string"`
	MintPrice     uint64    `bun:"mint_price,notnull" json:"mintPrice,string"`
	CheckedIn     bool      `bun:"checked_in,notnull" json:"checkedIn"`
	CheckedInAt   time.Time `bun:"checked_in_at,nullzero" json:"checkedInAt,omitempty"`
	Refunded      bool      `bun:"refunded,notnull" json:"refunded"`
	MintedAt      time.Time `bun:"minted_at,notnull" json:"mintedAt"`
}
