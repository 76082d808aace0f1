// Package lifecycle is the citation/payment lifecycle engine: the only code
// path permitted to write citation and payment status fields. It enforces
// the cross-entity invariants (citation paid iff one completed payment,
// receipt numbers unique, fine tiers frozen at issue time) atomically, and
// writes an audit entry in the same transaction as every mutation.
package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"citepay/internal/audit"
	"citepay/internal/catalog"
	citationmodels "citepay/internal/citation/models"
	"citepay/internal/payment/models"
	"citepay/internal/platform/metrics"
	id "citepay/pkg/domain"
	dErrors "citepay/pkg/domain-errors"
)

// CitationStore is the persistence surface the engine needs for citations.
// Satisfied by internal/citation/store implementations.
type CitationStore interface {
	Create(ctx context.Context, citation *citationmodels.Citation) error
	Update(ctx context.Context, citation *citationmodels.Citation) error
	FindByID(ctx context.Context, citationID id.CitationID) (*citationmodels.Citation, error)
	SetStatus(ctx context.Context, citationID id.CitationID, status citationmodels.Status, now time.Time) error
	SoftDelete(ctx context.Context, citationID id.CitationID, now time.Time) error
	TicketNumberInUse(ctx context.Context, ticketNumber string, excluding id.CitationID) (bool, error)
	CountPriorOffenses(ctx context.Context, licenseNumber string, violationTypeID id.ViolationTypeID, excluding id.CitationID) (int, error)
}

// PaymentStore is the persistence surface the engine needs for payments.
// Satisfied by internal/payment/store implementations.
type PaymentStore interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error)
	FindActiveByCitation(ctx context.Context, citationID id.CitationID) (*models.Payment, error)
	UpdateStatus(ctx context.Context, paymentID id.PaymentID, status models.Status, paymentDate *time.Time, now time.Time) error
	UpdateReceiptNumber(ctx context.Context, paymentID id.PaymentID, receiptNumber string, now time.Time) error
	Delete(ctx context.Context, paymentID id.PaymentID) error
	ReceiptNumberInUse(ctx context.Context, receiptNumber string, excluding id.PaymentID) (bool, error)
}

// ReceiptCacheInvalidator drops a cached receipt view after a reversal or
// receipt-number change. Invalidation happens after commit and is
// best-effort; a failure is logged, never surfaced.
type ReceiptCacheInvalidator interface {
	Invalidate(ctx context.Context, receiptNumber string) error
}

// Engine orchestrates all citation and payment state transitions.
type Engine struct {
	citations    CitationStore
	payments     PaymentStore
	trail        *audit.Trail
	catalog      *catalog.Catalog
	tx           StoreTx
	logger       *slog.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer
	receiptCache ReceiptCacheInvalidator
}

type Option func(e *Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

func WithReceiptCacheInvalidator(invalidator ReceiptCacheInvalidator) Option {
	return func(e *Engine) {
		e.receiptCache = invalidator
	}
}

// New constructs the engine.
func New(citations CitationStore, payments PaymentStore, trail *audit.Trail, cat *catalog.Catalog, tx StoreTx, opts ...Option) *Engine {
	e := &Engine{
		citations: citations,
		payments:  payments,
		trail:     trail,
		catalog:   cat,
		tx:        tx,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// History returns an entity's audit entries oldest-first.
func (e *Engine) History(ctx context.Context, entityType audit.EntityType, entityID uuid.UUID, cursor int64, limit int) (*audit.Page, error) {
	return e.trail.History(ctx, entityType, entityID, cursor, limit)
}

// instrument opens a span and returns a closer that records duration and,
// on error, a failure counter labelled by operation and error code.
func (e *Engine) instrument(ctx context.Context, op string) (context.Context, func(err error)) {
	start := time.Now()
	var span trace.Span
	if e.tracer != nil {
		ctx, span = e.tracer.Start(ctx, "lifecycle."+op)
	}
	return ctx, func(err error) {
		if span != nil {
			if err != nil {
				span.RecordError(err)
			}
			span.End()
		}
		if e.metrics != nil {
			e.metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
			if err != nil {
				e.metrics.OperationFailures.WithLabelValues(op, string(dErrors.CodeOf(err))).Inc()
			}
		}
	}
}

func (e *Engine) logInfo(ctx context.Context, msg string, args ...any) {
	if e.logger != nil {
		e.logger.InfoContext(ctx, msg, args...)
	}
}

func (e *Engine) logWarn(ctx context.Context, msg string, args ...any) {
	if e.logger != nil {
		e.logger.WarnContext(ctx, msg, args...)
	}
}

// invalidateReceipt drops a cached receipt view after commit.
func (e *Engine) invalidateReceipt(ctx context.Context, receiptNumber string) {
	if e.receiptCache == nil {
		return
	}
	if err := e.receiptCache.Invalidate(ctx, receiptNumber); err != nil {
		e.logWarn(ctx, "receipt cache invalidation failed",
			"receipt_number", receiptNumber, "error", err)
	}
}
