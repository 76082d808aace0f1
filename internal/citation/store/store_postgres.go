package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"citepay/internal/citation/models"
	id "citepay/pkg/domain"
	"citepay/pkg/platform/sentinel"
	txcontext "citepay/pkg/platform/tx"
)

// PostgresStore persists citations and their violation lines in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed citation store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, citation *models.Citation) error {
	exec := s.execer(ctx)

	_, err := exec.ExecContext(ctx, `
		INSERT INTO citations (id, ticket_number, driver_name, license_number, plate_number, driver_address, status, total_fine, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		uuid.UUID(citation.ID),
		citation.TicketNumber,
		citation.DriverName,
		citation.LicenseNumber,
		citation.PlateNumber,
		citation.DriverAddress,
		string(citation.Status),
		citation.TotalFine,
		citation.CreatedBy,
		citation.CreatedAt,
		citation.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("ticket number %q: %w", citation.TicketNumber, sentinel.ErrDuplicate)
		}
		return fmt.Errorf("insert citation: %w", err)
	}

	if err := s.insertLines(ctx, exec, citation.ID, citation.Lines); err != nil {
		return err
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, citation *models.Citation) error {
	exec := s.execer(ctx)

	result, err := exec.ExecContext(ctx, `
		UPDATE citations
		SET ticket_number = $2, driver_name = $3, license_number = $4, plate_number = $5, driver_address = $6, total_fine = $7, updated_at = $8
		WHERE id = $1 AND deleted_at IS NULL
	`,
		uuid.UUID(citation.ID),
		citation.TicketNumber,
		citation.DriverName,
		citation.LicenseNumber,
		citation.PlateNumber,
		citation.DriverAddress,
		citation.TotalFine,
		citation.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("ticket number %q: %w", citation.TicketNumber, sentinel.ErrDuplicate)
		}
		return fmt.Errorf("update citation: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sentinel.ErrNotFound
	}

	if _, err := exec.ExecContext(ctx,
		`DELETE FROM violation_lines WHERE citation_id = $1`, uuid.UUID(citation.ID)); err != nil {
		return fmt.Errorf("delete violation lines: %w", err)
	}
	return s.insertLines(ctx, exec, citation.ID, citation.Lines)
}

func (s *PostgresStore) insertLines(ctx context.Context, exec dbExecutor, citationID id.CitationID, lines []models.ViolationLine) error {
	for _, line := range lines {
		_, err := exec.ExecContext(ctx, `
			INSERT INTO violation_lines (citation_id, violation_type_id, offense_tier, fine_amount)
			VALUES ($1, $2, $3, $4)
		`,
			uuid.UUID(citationID),
			uuid.UUID(line.ViolationTypeID),
			line.OffenseTier,
			line.FineAmount,
		)
		if err != nil {
			return fmt.Errorf("insert violation line: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, citationID id.CitationID) (*models.Citation, error) {
	exec := s.execer(ctx)

	var (
		citation  models.Citation
		rawID     uuid.UUID
		status    string
		deletedAt sql.NullTime
	)
	err := exec.QueryRowContext(ctx, `
		SELECT id, ticket_number, driver_name, license_number, plate_number, driver_address, status, total_fine, created_by, created_at, updated_at, deleted_at
		FROM citations
		WHERE id = $1
	`, uuid.UUID(citationID)).Scan(
		&rawID,
		&citation.TicketNumber,
		&citation.DriverName,
		&citation.LicenseNumber,
		&citation.PlateNumber,
		&citation.DriverAddress,
		&status,
		&citation.TotalFine,
		&citation.CreatedBy,
		&citation.CreatedAt,
		&citation.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find citation: %w", err)
	}
	citation.ID = id.CitationID(rawID)
	citation.Status = models.Status(status)
	if deletedAt.Valid {
		citation.DeletedAt = &deletedAt.Time
	}

	lines, err := s.findLines(ctx, exec, citationID)
	if err != nil {
		return nil, err
	}
	citation.Lines = lines
	return &citation, nil
}

func (s *PostgresStore) findLines(ctx context.Context, exec dbExecutor, citationID id.CitationID) ([]models.ViolationLine, error) {
	rows, err := exec.QueryContext(ctx, `
		SELECT citation_id, violation_type_id, offense_tier, fine_amount
		FROM violation_lines
		WHERE citation_id = $1
		ORDER BY violation_type_id
	`, uuid.UUID(citationID))
	if err != nil {
		return nil, fmt.Errorf("query violation lines: %w", err)
	}
	defer rows.Close()

	var lines []models.ViolationLine
	for rows.Next() {
		var (
			line      models.ViolationLine
			rawCit    uuid.UUID
			rawType   uuid.UUID
		)
		if err := rows.Scan(&rawCit, &rawType, &line.OffenseTier, &line.FineAmount); err != nil {
			return nil, fmt.Errorf("scan violation line: %w", err)
		}
		line.CitationID = id.CitationID(rawCit)
		line.ViolationTypeID = id.ViolationTypeID(rawType)
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate violation lines: %w", err)
	}
	return lines, nil
}

func (s *PostgresStore) SetStatus(ctx context.Context, citationID id.CitationID, status models.Status, now time.Time) error {
	result, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE citations SET status = $2, updated_at = $3
		WHERE id = $1 AND deleted_at IS NULL
	`, uuid.UUID(citationID), string(status), now)
	if err != nil {
		return fmt.Errorf("set citation status: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SoftDelete(ctx context.Context, citationID id.CitationID, now time.Time) error {
	result, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE citations SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`, uuid.UUID(citationID), now)
	if err != nil {
		return fmt.Errorf("soft delete citation: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) TicketNumberInUse(ctx context.Context, ticketNumber string, excluding id.CitationID) (bool, error) {
	var exists bool
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM citations
			WHERE lower(ticket_number) = lower($1) AND deleted_at IS NULL AND id <> $2
		)
	`, ticketNumber, uuid.UUID(excluding)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check ticket number: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) CountPriorOffenses(ctx context.Context, licenseNumber string, violationTypeID id.ViolationTypeID, excluding id.CitationID) (int, error) {
	var count int
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT count(*)
		FROM citations c
		JOIN violation_lines vl ON vl.citation_id = c.id
		WHERE lower(c.license_number) = lower($1)
		  AND vl.violation_type_id = $2
		  AND c.deleted_at IS NULL
		  AND c.id <> $3
	`, licenseNumber, uuid.UUID(violationTypeID), uuid.UUID(excluding)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count prior offenses: %w", err)
	}
	return count, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
