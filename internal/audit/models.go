// Package audit is the append-only trail of every state transition in the
// system. Entries are written in the same transaction as the mutation they
// document: no mutation without an entry, no orphan entry without a
// mutation. Entries are never updated or deleted.
package audit

import (
	"time"

	"github.com/google/uuid"

	id "citepay/pkg/domain"
)

// EntityType names the kind of record an entry documents.
type EntityType string

const (
	EntityCitation EntityType = "citation"
	EntityPayment  EntityType = "payment"
)

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	return t == EntityCitation || t == EntityPayment
}

// Actions recorded by the lifecycle engine. For a cancelled payment the
// audit entry is the sole remaining record of the deleted row.
const (
	ActionCreated        = "created"
	ActionUpdated        = "updated"
	ActionStatusChanged  = "status_changed"
	ActionDeleted        = "deleted"
	ActionRecorded       = "recorded"
	ActionFinalized      = "finalized"
	ActionCancelled      = "cancelled"
	ActionReceiptChanged = "receipt_changed"
	ActionVoided         = "voided"
	ActionRefunded       = "refunded"
)

// Entry is one immutable audit record. Seq is assigned by the store and
// provides a total, restartable order for history pagination and the
// reporting stream.
type Entry struct {
	ID         id.AuditEntryID `json:"id"`
	Seq        int64           `json:"seq"`
	EntityType EntityType      `json:"entity_type"`
	EntityID   uuid.UUID       `json:"entity_id"`
	Actor      string          `json:"actor"`
	Action     string          `json:"action"`
	OldValues  map[string]any  `json:"old_values,omitempty"`
	NewValues  map[string]any  `json:"new_values,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
