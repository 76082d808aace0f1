package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "citepay/pkg/domain"
	dErrors "citepay/pkg/domain-errors"
)

// Status is the lifecycle state of a citation.
//
// State machine:
//   - pending -> paid: only via payment finalization (engine-internal)
//   - pending -> contested | dismissed | void: admin status change
//   - paid -> pending: only via payment void/refund (engine-internal)
//   - contested | dismissed | void -> pending or another of those three:
//     admin status change, unconstrained (terminality is an open policy
//     question and deliberately not assumed)
//
// "paid" is never a valid target of an admin status change.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusContested Status = "contested"
	StatusDismissed Status = "dismissed"
	StatusVoid      Status = "void"
)

// Valid reports whether s is a known citation status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusContested, StatusDismissed, StatusVoid:
		return true
	}
	return false
}

// AdminTarget reports whether s may be requested through the admin
// status-change path. Paid is reachable solely via payment finalization.
func (s Status) AdminTarget() bool {
	switch s {
	case StatusPending, StatusContested, StatusDismissed, StatusVoid:
		return true
	}
	return false
}

// CanAdminTransitionTo reports whether an admin may move a citation from s
// to target.
func (s Status) CanAdminTransitionTo(target Status) bool {
	if s == StatusPaid || s == target {
		return false
	}
	return target.AdminTarget()
}

// Citation is the aggregate root for an issued traffic citation.
//
// Invariants:
//   - TicketNumber matches the ticket format and is unique among
//     non-deleted citations, case-insensitively
//   - TotalFine equals the sum of the lines' FineAmount
//   - Status=paid iff exactly one completed payment exists (enforced by
//     the lifecycle engine, the only writer of status)
//   - each line's OffenseTier is frozen once the citation is persisted
type Citation struct {
	ID            id.CitationID   `json:"id"`
	TicketNumber  string          `json:"ticket_number"`
	DriverName    string          `json:"driver_name"`
	LicenseNumber string          `json:"license_number"`
	PlateNumber   string          `json:"plate_number"`
	DriverAddress string          `json:"driver_address"`
	Lines         []ViolationLine `json:"lines"`
	TotalFine     decimal.Decimal `json:"total_fine"`
	Status        Status          `json:"status"`
	CreatedBy     string          `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     *time.Time      `json:"deleted_at,omitempty"`
}

// ViolationLine is one violation charged on a citation. The tier and fine
// are computed once from the offense history and the catalog, then frozen.
type ViolationLine struct {
	CitationID      id.CitationID      `json:"citation_id"`
	ViolationTypeID id.ViolationTypeID `json:"violation_type_id"`
	OffenseTier     int                `json:"offense_tier"`
	FineAmount      decimal.Decimal    `json:"fine_amount"`
}

// IsDeleted reports whether the citation has been soft-deleted.
func (c *Citation) IsDeleted() bool {
	return c.DeletedAt != nil
}

// SumLines returns the sum of the lines' fine amounts.
func SumLines(lines []ViolationLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.FineAmount)
	}
	return total
}

// ticketNumberPattern: 6-8 characters, letters, digits, and hyphens only.
var ticketNumberPattern = regexp.MustCompile(`^[A-Za-z0-9-]{6,8}$`)

// ValidateTicketNumber checks the ticket number format. Uniqueness is a
// store concern; this only guards the shape.
func ValidateTicketNumber(ticket string) error {
	if !ticketNumberPattern.MatchString(ticket) {
		return dErrors.New(dErrors.CodeValidation,
			"ticket number must be 6-8 letters, digits, or hyphens")
	}
	return nil
}

// Draft is the input for creating a citation. Violations carry the type
// only; tiers and fines are computed by the engine.
type Draft struct {
	TicketNumber  string
	DriverName    string
	LicenseNumber string
	PlateNumber   string
	DriverAddress string
	Violations    []id.ViolationTypeID
}

// Validate checks the draft's shape before any store access.
func (d *Draft) Validate() error {
	d.TicketNumber = strings.TrimSpace(d.TicketNumber)
	d.DriverName = strings.TrimSpace(d.DriverName)
	d.LicenseNumber = strings.TrimSpace(d.LicenseNumber)

	if err := ValidateTicketNumber(d.TicketNumber); err != nil {
		return err
	}
	if d.DriverName == "" {
		return dErrors.New(dErrors.CodeValidation, "driver name is required")
	}
	if d.LicenseNumber == "" {
		return dErrors.New(dErrors.CodeValidation, "license number is required")
	}
	if len(d.Violations) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one violation is required")
	}
	seen := make(map[id.ViolationTypeID]bool, len(d.Violations))
	for _, vt := range d.Violations {
		if vt.IsNil() {
			return dErrors.New(dErrors.CodeValidation, "violation type id is required")
		}
		if seen[vt] {
			return dErrors.New(dErrors.CodeValidation, "violation types must not repeat")
		}
		seen[vt] = true
	}
	return nil
}

// Patch carries the mutable fields of an update. Nil means "leave as is".
// Status is deliberately absent: it can only move through the engine's
// status-change and payment paths.
type Patch struct {
	TicketNumber  *string
	DriverName    *string
	LicenseNumber *string
	PlateNumber   *string
	DriverAddress *string
	Violations    *[]id.ViolationTypeID
}
