package models

import (
	"github.com/uptrace/bun"
)

type EntryKind string

const (
	EntryOrganizerApproved EntryKind = "organizer-approved"
	EntryOrganizerRevoked  EntryKind = "organizer-revoked"
	EntryEventCreated      EntryKind = "event-created"
	EntryEventCancelled    EntryKind = "event-cancelled"
	EntryEventOccurred     EntryKind = "event-occurred"
	EntryTicketMinted      EntryKind = "ticket-minted"
	EntryTicketListed      EntryKind = "ticket-listed"
	EntryTicketUnlisted    EntryKind = "ticket-unlisted"
	EntryTicketSold        EntryKind = "ticket-sold"
	EntryOrganizerWithdraw EntryKind = "organizer-withdraw"
	EntryAttendeeRefund    EntryKind = "attendee-refund"
	EntryTicketCheckedIn   EntryKind = "ticket-checked-in"
	EntryFeesWithdrawn     EntryKind = "fees-withdrawn"
	EntryPayoutClaimed     EntryKind = "payout-claimed"
)

// Entry is one record of the append-only, hash-chained ledger journal.
// Hash covers every other field, so it is excluded from JSON hashing input
// by zeroing it before canonicalization.
type Entry struct {
	bun.BaseModel `bun:"table:ledger_entries"`

	Seq          uint64    `bun:"seq,pk" json:"seq,string"`
	Kind         EntryKind `bun:"kind,notnull" json:"kind"`
	EventID      uint64    `bun:"event_id" json:"eventId,string"`
	TokenID      uint64    `bun:"token_id" json:"tokenId,string"`
	Seat         uint64    `bun:"seat" json:"seat,string"`
	Actor        Address   `bun:"actor,notnull" json:"actor"`
	Counterparty Address   `bun:"counterparty" json:"counterparty,omitempty"`
	Amount       uint64    `bun:"amount" json:"amount,string"`
	Details      string    `bun:"details" json:"details,omitempty"`
	At           int64     `bun:"at,notnull" json:"at,string"`
	PrevHash     string    `bun:"prev_hash,notnull" json:"prevHash"`
	Hash         string    `bun:"hash,notnull" json:"hash,omitempty"`
}

// MovesMoney reports whether the entry changes a payout account or the fee balance.
func (e Entry) MovesMoney() bool {
	switch e.Kind {
	case EntryTicketSold, EntryOrganizerWithdraw, EntryAttendeeRefund, EntryFeesWithdrawn, EntryPayoutClaimed:
		return true
	}
	return false
}
