package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	id "citepay/pkg/domain"
	txcontext "citepay/pkg/platform/tx"
)

// PostgresStore persists audit entries in PostgreSQL. Append joins the
// transaction carried by the context so entries commit atomically with the
// mutations they document.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed audit store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, entry *Entry) error {
	oldValues, err := marshalValues(entry.OldValues)
	if err != nil {
		return fmt.Errorf("marshal old values: %w", err)
	}
	newValues, err := marshalValues(entry.NewValues)
	if err != nil {
		return fmt.Errorf("marshal new values: %w", err)
	}

	err = s.execer(ctx).QueryRowContext(ctx, `
		INSERT INTO audit_entries (id, entity_type, entity_id, actor, action, old_values, new_values, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING seq
	`,
		uuid.UUID(entry.ID),
		string(entry.EntityType),
		entry.EntityID,
		entry.Actor,
		entry.Action,
		oldValues,
		newValues,
		entry.Reason,
		entry.CreatedAt,
	).Scan(&entry.Seq)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByEntity(ctx context.Context, entityType EntityType, entityID uuid.UUID, afterSeq int64, limit int) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, entity_type, entity_id, actor, action, old_values, new_values, reason, created_at
		FROM audit_entries
		WHERE entity_type = $1 AND entity_id = $2 AND seq > $3
		ORDER BY seq
		LIMIT $4
	`, string(entityType), entityID, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func (s *PostgresStore) ListAfterSeq(ctx context.Context, afterSeq int64, limit int) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, entity_type, entity_id, actor, action, old_values, new_values, reason, created_at
		FROM audit_entries
		WHERE seq > $1
		ORDER BY seq
		LIMIT $2
	`, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var (
			entry      Entry
			rawID      uuid.UUID
			entityType string
			oldValues  []byte
			newValues  []byte
		)
		if err := rows.Scan(
			&rawID,
			&entry.Seq,
			&entityType,
			&entry.EntityID,
			&entry.Actor,
			&entry.Action,
			&oldValues,
			&newValues,
			&entry.Reason,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.ID = id.AuditEntryID(rawID)
		entry.EntityType = EntityType(entityType)
		if err := unmarshalValues(oldValues, &entry.OldValues); err != nil {
			return nil, fmt.Errorf("unmarshal old values: %w", err)
		}
		if err := unmarshalValues(newValues, &entry.NewValues); err != nil {
			return nil, fmt.Errorf("unmarshal new values: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

func marshalValues(values map[string]any) ([]byte, error) {
	if values == nil {
		return nil, nil
	}
	return json.Marshal(values)
}

func unmarshalValues(raw []byte, into *map[string]any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, into)
}
