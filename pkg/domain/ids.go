// Package domain defines typed identifiers shared across the module.
//
// Each entity gets its own UUID-backed type so a PaymentID can never be
// passed where a CitationID is expected. Parse functions enforce the
// invariant that IDs are valid, non-empty, non-nil UUIDs at trust
// boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "citepay/pkg/domain-errors"
)

type (
	// CitationID identifies a citation record.
	CitationID uuid.UUID
	// PaymentID identifies a payment record.
	PaymentID uuid.UUID
	// ViolationTypeID identifies a violation type in the catalog.
	ViolationTypeID uuid.UUID
	// AuditEntryID identifies an audit trail entry.
	AuditEntryID uuid.UUID
)

func (id CitationID) String() string      { return uuid.UUID(id).String() }
func (id PaymentID) String() string       { return uuid.UUID(id).String() }
func (id ViolationTypeID) String() string { return uuid.UUID(id).String() }
func (id AuditEntryID) String() string    { return uuid.UUID(id).String() }

// MarshalText renders IDs in canonical UUID form so they read naturally in
// JSON payloads and log lines.
func (id CitationID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id PaymentID) MarshalText() ([]byte, error)       { return []byte(id.String()), nil }
func (id ViolationTypeID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id AuditEntryID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }

func (id *CitationID) UnmarshalText(b []byte) error {
	parsed, err := ParseCitationID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *PaymentID) UnmarshalText(b []byte) error {
	parsed, err := ParsePaymentID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ViolationTypeID) UnmarshalText(b []byte) error {
	parsed, err := ParseViolationTypeID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *AuditEntryID) UnmarshalText(b []byte) error {
	parsed, err := ParseAuditEntryID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id CitationID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id PaymentID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id ViolationTypeID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id AuditEntryID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// NewCitationID returns a fresh random CitationID.
func NewCitationID() CitationID { return CitationID(uuid.New()) }

// NewPaymentID returns a fresh random PaymentID.
func NewPaymentID() PaymentID { return PaymentID(uuid.New()) }

// NewViolationTypeID returns a fresh random ViolationTypeID.
func NewViolationTypeID() ViolationTypeID { return ViolationTypeID(uuid.New()) }

// NewAuditEntryID returns a fresh random AuditEntryID.
func NewAuditEntryID() AuditEntryID { return AuditEntryID(uuid.New()) }

// ParseCitationID parses and validates a citation ID string.
func ParseCitationID(s string) (CitationID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return CitationID{}, err
	}
	return CitationID(u), nil
}

// ParsePaymentID parses and validates a payment ID string.
func ParsePaymentID(s string) (PaymentID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return PaymentID{}, err
	}
	return PaymentID(u), nil
}

// ParseViolationTypeID parses and validates a violation type ID string.
func ParseViolationTypeID(s string) (ViolationTypeID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return ViolationTypeID{}, err
	}
	return ViolationTypeID(u), nil
}

// ParseAuditEntryID parses and validates an audit entry ID string.
func ParseAuditEntryID(s string) (AuditEntryID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return AuditEntryID{}, err
	}
	return AuditEntryID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return u, nil
}
