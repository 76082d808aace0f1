// Package store persists citation records. The Postgres implementation is
// the authority for ticket-number uniqueness: the partial unique index on
// lower(ticket_number) decides races that application pre-checks cannot.
package store

import (
	"context"
	"time"

	"citepay/internal/citation/models"
	id "citepay/pkg/domain"
)

// Store is the persistence interface the lifecycle engine drives. Mutations
// join the transaction carried by the context (pkg/platform/tx).
//
// Sentinel contract: FindByID returns sentinel.ErrNotFound for unknown or
// absent rows; Create and Update return sentinel.ErrDuplicate when the
// ticket-number constraint rejects the write.
type Store interface {
	Create(ctx context.Context, citation *models.Citation) error
	Update(ctx context.Context, citation *models.Citation) error
	FindByID(ctx context.Context, citationID id.CitationID) (*models.Citation, error)
	SetStatus(ctx context.Context, citationID id.CitationID, status models.Status, now time.Time) error
	SoftDelete(ctx context.Context, citationID id.CitationID, now time.Time) error

	// TicketNumberInUse reports whether a non-deleted citation other than
	// excluding already uses the ticket number, case-insensitively. This is
	// the UX fast path only; the unique index remains authoritative.
	TicketNumberInUse(ctx context.Context, ticketNumber string, excluding id.CitationID) (bool, error)

	// CountPriorOffenses counts non-deleted citations carrying the
	// violation type for the same driver license, excluding the citation
	// being created or edited.
	CountPriorOffenses(ctx context.Context, licenseNumber string, violationTypeID id.ViolationTypeID, excluding id.CitationID) (int, error)
}
