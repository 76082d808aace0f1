package stream

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// CursorStore persists the stream's position: the last audit sequence
// number published. Saving only after a successful publish gives
// at-least-once delivery across restarts.
type CursorStore interface {
	Load(ctx context.Context) (int64, error)
	Save(ctx context.Context, seq int64) error
}

// PostgresCursorStore keeps the cursor in the single-row
// audit_stream_cursor table.
type PostgresCursorStore struct {
	db *sql.DB
}

func NewPostgresCursorStore(db *sql.DB) *PostgresCursorStore {
	return &PostgresCursorStore{db: db}
}

func (s *PostgresCursorStore) Load(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_seq FROM audit_stream_cursor WHERE id = 1`).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load stream cursor: %w", err)
	}
	return seq, nil
}

func (s *PostgresCursorStore) Save(ctx context.Context, seq int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_stream_cursor (id, last_seq) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET last_seq = EXCLUDED.last_seq
	`, seq)
	if err != nil {
		return fmt.Errorf("save stream cursor: %w", err)
	}
	return nil
}

// InMemoryCursorStore holds the cursor in memory for tests.
type InMemoryCursorStore struct {
	mu  sync.Mutex
	seq int64
}

func NewInMemoryCursorStore() *InMemoryCursorStore {
	return &InMemoryCursorStore{}
}

func (s *InMemoryCursorStore) Load(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq, nil
}

func (s *InMemoryCursorStore) Save(_ context.Context, seq int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = seq
	return nil
}
