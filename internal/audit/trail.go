package audit

import (
	"context"

	"github.com/google/uuid"

	id "citepay/pkg/domain"
	dErrors "citepay/pkg/domain-errors"
	"citepay/pkg/requestcontext"
)

// Store persists audit entries. Append must participate in the caller's
// transaction (via pkg/platform/tx) so the entry commits or rolls back with
// the mutation it documents.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	ListByEntity(ctx context.Context, entityType EntityType, entityID uuid.UUID, afterSeq int64, limit int) ([]*Entry, error)
	ListAfterSeq(ctx context.Context, afterSeq int64, limit int) ([]*Entry, error)
}

// DefaultPageSize bounds history pages when the caller does not say.
const DefaultPageSize = 50

// Trail is the append/history facade over the audit store.
type Trail struct {
	store Store
}

// NewTrail constructs a Trail.
func NewTrail(store Store) *Trail {
	return &Trail{store: store}
}

// Append records one transition. A failure here is fatal to the enclosing
// operation: the caller's transaction must roll back rather than commit a
// mutation without its entry.
func (t *Trail) Append(ctx context.Context, entityType EntityType, entityID uuid.UUID, actor, action string, oldValues, newValues map[string]any, reason string) error {
	entry := &Entry{
		ID:         id.NewAuditEntryID(),
		EntityType: entityType,
		EntityID:   entityID,
		Actor:      actor,
		Action:     action,
		OldValues:  oldValues,
		NewValues:  newValues,
		Reason:     reason,
		CreatedAt:  requestcontext.Now(ctx),
	}
	if err := t.store.Append(ctx, entry); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "append audit entry")
	}
	return nil
}

// Page is one page of history, oldest first. NextCursor restarts the walk
// after the last returned entry; zero means the walk is exhausted.
type Page struct {
	Entries    []*Entry
	NextCursor int64
}

// History returns an entity's audit entries oldest-first, starting after
// the given cursor (0 for the beginning).
func (t *Trail) History(ctx context.Context, entityType EntityType, entityID uuid.UUID, cursor int64, limit int) (*Page, error) {
	if !entityType.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown entity type")
	}
	if limit <= 0 || limit > 500 {
		limit = DefaultPageSize
	}

	entries, err := t.store.ListByEntity(ctx, entityType, entityID, cursor, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "list audit entries")
	}

	page := &Page{Entries: entries}
	if len(entries) == limit {
		page.NextCursor = entries[len(entries)-1].Seq
	}
	return page, nil
}
