package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"citepay/internal/payment/models"
	id "citepay/pkg/domain"
	"citepay/pkg/platform/sentinel"
	txcontext "citepay/pkg/platform/tx"
)

const (
	receiptConstraint       = "payments_receipt_number"
	activePaymentConstraint = "payments_one_active_per_citation"
)

// PostgresStore persists payments in PostgreSQL. Both uniqueness rules
// (receipt number, one active payment per citation) are enforced by
// indexes, and constraint violations are mapped back to the store's
// error contract by constraint name.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed payment store.
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

func (s *PostgresStore) Create(ctx context.Context, payment *models.Payment) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO payments (id, citation_id, receipt_number, amount_paid, payment_method, status, collected_by, payment_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		uuid.UUID(payment.ID),
		uuid.UUID(payment.CitationID),
		payment.ReceiptNumber,
		payment.AmountPaid,
		string(payment.Method),
		string(payment.Status),
		payment.CollectedBy,
		payment.PaymentDate,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		return translateConstraint(err, payment.ReceiptNumber, "insert payment")
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error) {
	return s.findOne(ctx, `WHERE id = $1`, uuid.UUID(paymentID))
}

func (s *PostgresStore) FindActiveByCitation(ctx context.Context, citationID id.CitationID) (*models.Payment, error) {
	return s.findOne(ctx,
		`WHERE citation_id = $1 AND status IN ('pending_print', 'completed')`,
		uuid.UUID(citationID))
}

func (s *PostgresStore) FindByReceiptNumber(ctx context.Context, receiptNumber string) (*models.Payment, error) {
	return s.findOne(ctx, `WHERE receipt_number = $1`, receiptNumber)
}

func (s *PostgresStore) findOne(ctx context.Context, where string, arg any) (*models.Payment, error) {
	var (
		payment     models.Payment
		rawID       uuid.UUID
		rawCitation uuid.UUID
		method      string
		status      string
		paymentDate sql.NullTime
	)
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, citation_id, receipt_number, amount_paid, payment_method, status, collected_by, payment_date, created_at, updated_at
		FROM payments `+where,
		arg,
	).Scan(
		&rawID,
		&rawCitation,
		&payment.ReceiptNumber,
		&payment.AmountPaid,
		&method,
		&status,
		&payment.CollectedBy,
		&paymentDate,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find payment: %w", err)
	}
	payment.ID = id.PaymentID(rawID)
	payment.CitationID = id.CitationID(rawCitation)
	payment.Method = models.Method(method)
	payment.Status = models.Status(status)
	if paymentDate.Valid {
		payment.PaymentDate = &paymentDate.Time
	}
	return &payment, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, paymentID id.PaymentID, status models.Status, paymentDate *time.Time, now time.Time) error {
	result, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE payments SET status = $2, payment_date = $3, updated_at = $4
		WHERE id = $1
	`, uuid.UUID(paymentID), string(status), paymentDate, now)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateReceiptNumber(ctx context.Context, paymentID id.PaymentID, receiptNumber string, now time.Time) error {
	result, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE payments SET receipt_number = $2, updated_at = $3
		WHERE id = $1
	`, uuid.UUID(paymentID), receiptNumber, now)
	if err != nil {
		return translateConstraint(err, receiptNumber, "update receipt number")
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, paymentID id.PaymentID) error {
	result, err := s.execer(ctx).ExecContext(ctx,
		`DELETE FROM payments WHERE id = $1`, uuid.UUID(paymentID))
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ReceiptNumberInUse(ctx context.Context, receiptNumber string, excluding id.PaymentID) (bool, error) {
	var exists bool
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM payments WHERE receipt_number = $1 AND id <> $2
		)
	`, receiptNumber, uuid.UUID(excluding)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check receipt number: %w", err)
	}
	return exists, nil
}

func translateConstraint(err error, receiptNumber, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case activePaymentConstraint:
			return ErrActivePaymentExists
		case receiptConstraint:
			return fmt.Errorf("receipt number %q: %w", receiptNumber, sentinel.ErrDuplicate)
		default:
			return fmt.Errorf("%s: %w", op, sentinel.ErrDuplicate)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
