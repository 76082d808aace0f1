package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "citepay/pkg/domain"
)

// PostgresStore reads violation types from PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed catalog store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ListViolationTypes(ctx context.Context) ([]*ViolationType, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, name, fine_first, fine_second, fine_third, created_at
		FROM violation_types
		ORDER BY code
	`)
	if err != nil {
		return nil, fmt.Errorf("query violation types: %w", err)
	}
	defer rows.Close()

	var types []*ViolationType
	for rows.Next() {
		var (
			vt    ViolationType
			rawID uuid.UUID
		)
		if err := rows.Scan(
			&rawID,
			&vt.Code,
			&vt.Name,
			&vt.FineFirst,
			&vt.FineSecond,
			&vt.FineThird,
			&vt.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan violation type: %w", err)
		}
		vt.ID = id.ViolationTypeID(rawID)
		types = append(types, &vt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate violation types: %w", err)
	}
	return types, nil
}
