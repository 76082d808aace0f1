package handler

import (
	"citepay/internal/audit"
	"citepay/internal/citation/models"
	id "citepay/pkg/domain"
)

// CreateRequest is the POST /citations body.
type CreateRequest struct {
	TicketNumber  string   `json:"ticket_number" validate:"required"`
	DriverName    string   `json:"driver_name" validate:"required"`
	LicenseNumber string   `json:"license_number" validate:"required"`
	PlateNumber   string   `json:"plate_number"`
	DriverAddress string   `json:"driver_address"`
	Violations    []string `json:"violations" validate:"required,min=1"`
}

// ToDraft converts the request, parsing violation type IDs strictly.
func (r *CreateRequest) ToDraft() (models.Draft, error) {
	violations, err := parseViolationIDs(r.Violations)
	if err != nil {
		return models.Draft{}, err
	}
	return models.Draft{
		TicketNumber:  r.TicketNumber,
		DriverName:    r.DriverName,
		LicenseNumber: r.LicenseNumber,
		PlateNumber:   r.PlateNumber,
		DriverAddress: r.DriverAddress,
		Violations:    violations,
	}, nil
}

// UpdateRequest is the PATCH /citations/{id} body. Absent fields are left
// untouched; status is deliberately not accepted here.
type UpdateRequest struct {
	TicketNumber  *string   `json:"ticket_number"`
	DriverName    *string   `json:"driver_name"`
	LicenseNumber *string   `json:"license_number"`
	PlateNumber   *string   `json:"plate_number"`
	DriverAddress *string   `json:"driver_address"`
	Violations    *[]string `json:"violations"`
}

// ToPatch converts the request to an engine patch.
func (r *UpdateRequest) ToPatch() (models.Patch, error) {
	patch := models.Patch{
		TicketNumber:  r.TicketNumber,
		DriverName:    r.DriverName,
		LicenseNumber: r.LicenseNumber,
		PlateNumber:   r.PlateNumber,
		DriverAddress: r.DriverAddress,
	}
	if r.Violations != nil {
		violations, err := parseViolationIDs(*r.Violations)
		if err != nil {
			return models.Patch{}, err
		}
		patch.Violations = &violations
	}
	return patch, nil
}

// ChangeStatusRequest is the POST /citations/{id}/status body.
type ChangeStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason"`
}

// ReasonRequest carries the free-text reason for destructive operations.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// HistoryResponse is one page of audit history.
type HistoryResponse struct {
	Entries    []*audit.Entry `json:"entries"`
	NextCursor int64          `json:"next_cursor,omitempty"`
}

func parseViolationIDs(raw []string) ([]id.ViolationTypeID, error) {
	violations := make([]id.ViolationTypeID, 0, len(raw))
	for _, s := range raw {
		typeID, err := id.ParseViolationTypeID(s)
		if err != nil {
			return nil, err
		}
		violations = append(violations, typeID)
	}
	return violations, nil
}
