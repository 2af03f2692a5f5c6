package models

import (
	"github.com/uptrace/bun"
)

// Account holds money owed to an address (withdrawals, refunds, resale
// proceeds) until it is claimed for settlement.
type Account struct {
	bun.BaseModel `bun:"table:accounts"`

	Address Address `bun:"address,pk" json:"address"`
	Pending uint64  `bun:"pending,notnull" json:"pending,string"`
}

// LedgerState is the singleton row for ledger-wide balances.
type LedgerState struct {
	bun.BaseModel `bun:"table:ledger_state"`

	ID         int    `bun:"id,pk" json:"-"`
	FeeBalance uint64 `bun:"fee_balance,notnull" json:"feeBalance,string"`
}
