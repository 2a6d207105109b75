package domain

import "time"

// LedgerEventType names what happened to a ledger.
type LedgerEventType string

const (
	LedgerEventPosted   LedgerEventType = "ledger.posted"
	LedgerEventReversed LedgerEventType = "ledger.reversed"
	LedgerEventLocked   LedgerEventType = "ledger.locked"
)

// LedgerEvent is emitted after a ledger change has committed.
// Consumers (notifications, receipts) must never be able to undo the change.
type LedgerEvent struct {
	Type            LedgerEventType    `json:"type"`
	Key             LedgerKey          `json:"key"`
	Transaction     *LedgerTransaction `json:"transaction,omitempty"`
	Original        *LedgerTransaction `json:"original,omitempty"`
	LockedThroughID int64              `json:"lockedThroughID,omitempty"`
	LockedCount     int64              `json:"lockedCount,omitempty"`
	ActorID         string             `json:"actorID"`
	OccurredAt      time.Time          `json:"occurredAt"`
}
