package lifecycle

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"citepay/internal/audit"
	"citepay/internal/catalog"
	"citepay/internal/citation/models"
	id "citepay/pkg/domain"
	dErrors "citepay/pkg/domain-errors"
	"citepay/pkg/platform/sentinel"
	"citepay/pkg/requestcontext"
)

// CreateCitation issues a new citation in status pending. Each violation
// line's offense tier is computed from the driver's prior non-deleted
// citations for that violation type, tier = min(prior+1, 3), and frozen.
// The ticket-number pre-check is a fast path only; the authoritative guard
// is the store's uniqueness constraint inside the transaction.
func (e *Engine) CreateCitation(ctx context.Context, draft models.Draft) (citation *models.Citation, err error) {
	ctx, done := e.instrument(ctx, "create_citation")
	defer func() { done(err) }()

	if err = draft.Validate(); err != nil {
		return nil, err
	}

	types, err := e.resolveViolationTypes(draft.Violations)
	if err != nil {
		return nil, err
	}

	inUse, err := e.citations.TicketNumberInUse(ctx, draft.TicketNumber, id.CitationID{})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "check ticket number")
	}
	if inUse {
		return nil, dErrors.New(dErrors.CodeDuplicateTicket, "ticket number already in use")
	}

	citationID := id.NewCitationID()
	actor := requestcontext.Actor(ctx)
	now := requestcontext.Now(ctx)

	err = e.tx.RunInTx(ctx, func(ctx context.Context) error {
		lines, txErr := e.computeLines(ctx, citationID, draft.LicenseNumber, types)
		if txErr != nil {
			return txErr
		}

		citation = &models.Citation{
			ID:            citationID,
			TicketNumber:  draft.TicketNumber,
			DriverName:    draft.DriverName,
			LicenseNumber: draft.LicenseNumber,
			PlateNumber:   draft.PlateNumber,
			DriverAddress: draft.DriverAddress,
			Lines:         lines,
			TotalFine:     models.SumLines(lines),
			Status:        models.StatusPending,
			CreatedBy:     actor,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if txErr := e.citations.Create(ctx, citation); txErr != nil {
			if errors.Is(txErr, sentinel.ErrDuplicate) {
				return dErrors.New(dErrors.CodeDuplicateTicket, "ticket number already in use")
			}
			return dErrors.Wrap(txErr, dErrors.CodeUnavailable, "create citation")
		}

		return e.trail.Append(ctx, audit.EntityCitation, uuid.UUID(citationID),
			actor, audit.ActionCreated, nil, citationSnapshot(citation), "")
	})
	if err != nil {
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.CitationsCreated.Inc()
	}
	e.logInfo(ctx, "citation created",
		"citation_id", citation.ID,
		"ticket_number", citation.TicketNumber,
		"total_fine", citation.TotalFine,
		"actor", actor)
	return citation, nil
}

// UpdateCitation applies a patch to a citation's mutable fields. Changing
// the violation list recomputes tiers and fines from current history, so it
// is rejected while a payment is active; other fields remain editable until
// the citation is paid. Status never moves through this path.
func (e *Engine) UpdateCitation(ctx context.Context, citationID id.CitationID, patch models.Patch) (citation *models.Citation, err error) {
	ctx, done := e.instrument(ctx, "update_citation")
	defer func() { done(err) }()

	actor := requestcontext.Actor(ctx)
	now := requestcontext.Now(ctx)

	err = e.tx.RunInTx(ctx, func(ctx context.Context) error {
		existing, txErr := e.loadCitation(ctx, citationID)
		if txErr != nil {
			return txErr
		}
		if existing.Status == models.StatusPaid {
			return dErrors.New(dErrors.CodeCitationPaid, "paid citations cannot be edited")
		}

		oldSnapshot := citationSnapshot(existing)
		updated := *existing
		updated.Lines = existing.Lines

		if patch.TicketNumber != nil {
			ticket := strings.TrimSpace(*patch.TicketNumber)
			if txErr := models.ValidateTicketNumber(ticket); txErr != nil {
				return txErr
			}
			if !strings.EqualFold(ticket, existing.TicketNumber) {
				inUse, txErr := e.citations.TicketNumberInUse(ctx, ticket, citationID)
				if txErr != nil {
					return dErrors.Wrap(txErr, dErrors.CodeUnavailable, "check ticket number")
				}
				if inUse {
					return dErrors.New(dErrors.CodeDuplicateTicket, "ticket number already in use")
				}
			}
			updated.TicketNumber = ticket
		}
		if patch.DriverName != nil {
			name := strings.TrimSpace(*patch.DriverName)
			if name == "" {
				return dErrors.New(dErrors.CodeValidation, "driver name is required")
			}
			updated.DriverName = name
		}
		if patch.LicenseNumber != nil {
			license := strings.TrimSpace(*patch.LicenseNumber)
			if license == "" {
				return dErrors.New(dErrors.CodeValidation, "license number is required")
			}
			updated.LicenseNumber = license
		}
		if patch.PlateNumber != nil {
			updated.PlateNumber = strings.TrimSpace(*patch.PlateNumber)
		}
		if patch.DriverAddress != nil {
			updated.DriverAddress = strings.TrimSpace(*patch.DriverAddress)
		}

		if patch.Violations != nil {
			if _, txErr := e.payments.FindActiveByCitation(ctx, citationID); txErr == nil {
				return dErrors.New(dErrors.CodeConflict,
					"citation has a pending payment; cancel it before changing violations")
			} else if !errors.Is(txErr, sentinel.ErrNotFound) {
				return dErrors.Wrap(txErr, dErrors.CodeUnavailable, "check active payment")
			}

			draft := models.Draft{
				TicketNumber:  updated.TicketNumber,
				DriverName:    updated.DriverName,
				LicenseNumber: updated.LicenseNumber,
				Violations:    *patch.Violations,
			}
			if txErr := draft.Validate(); txErr != nil {
				return txErr
			}
			types, txErr := e.resolveViolationTypes(draft.Violations)
			if txErr != nil {
				return txErr
			}
			lines, txErr := e.computeLines(ctx, citationID, updated.LicenseNumber, types)
			if txErr != nil {
				return txErr
			}
			updated.Lines = lines
			updated.TotalFine = models.SumLines(lines)
		}

		updated.UpdatedAt = now
		if txErr := e.citations.Update(ctx, &updated); txErr != nil {
			if errors.Is(txErr, sentinel.ErrDuplicate) {
				return dErrors.New(dErrors.CodeDuplicateTicket, "ticket number already in use")
			}
			if errors.Is(txErr, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "citation not found")
			}
			return dErrors.Wrap(txErr, dErrors.CodeUnavailable, "update citation")
		}
		citation = &updated

		return e.trail.Append(ctx, audit.EntityCitation, uuid.UUID(citationID),
			actor, audit.ActionUpdated, oldSnapshot, citationSnapshot(citation), "")
	})
	if err != nil {
		return nil, err
	}

	e.logInfo(ctx, "citation updated", "citation_id", citationID, "actor", actor)
	return citation, nil
}

// ChangeCitationStatus moves a citation between the admin-reachable
// statuses. Paid is never a valid target here and a paid citation never a
// valid source; those edges belong to payment finalization and reversal.
func (e *Engine) ChangeCitationStatus(ctx context.Context, citationID id.CitationID, target models.Status, reason string) (err error) {
	ctx, done := e.instrument(ctx, "change_citation_status")
	defer func() { done(err) }()

	if !target.Valid() {
		return dErrors.New(dErrors.CodeValidation, "unknown citation status: "+string(target))
	}

	actor := requestcontext.Actor(ctx)
	now := requestcontext.Now(ctx)

	err = e.tx.RunInTx(ctx, func(ctx context.Context) error {
		existing, txErr := e.loadCitation(ctx, citationID)
		if txErr != nil {
			return txErr
		}
		if !existing.Status.CanAdminTransitionTo(target) {
			return dErrors.New(dErrors.CodeInvalidTransition,
				"cannot change citation status from "+string(existing.Status)+" to "+string(target))
		}

		if txErr := e.citations.SetStatus(ctx, citationID, target, now); txErr != nil {
			if errors.Is(txErr, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "citation not found")
			}
			return dErrors.Wrap(txErr, dErrors.CodeUnavailable, "set citation status")
		}

		return e.trail.Append(ctx, audit.EntityCitation, uuid.UUID(citationID),
			actor, audit.ActionStatusChanged,
			map[string]any{"status": string(existing.Status)},
			map[string]any{"status": string(target)},
			reason)
	})
	if err != nil {
		return err
	}

	if e.metrics != nil {
		e.metrics.StatusChanges.WithLabelValues(string(target)).Inc()
	}
	e.logInfo(ctx, "citation status changed",
		"citation_id", citationID, "status", target, "actor", actor, "reason", reason)
	return nil
}

// DeleteCitation soft-deletes a citation. Its payments and audit history
// remain queryable; the ticket number is freed for reuse.
func (e *Engine) DeleteCitation(ctx context.Context, citationID id.CitationID, reason string) (err error) {
	ctx, done := e.instrument(ctx, "delete_citation")
	defer func() { done(err) }()

	actor := requestcontext.Actor(ctx)
	now := requestcontext.Now(ctx)

	err = e.tx.RunInTx(ctx, func(ctx context.Context) error {
		existing, txErr := e.loadCitation(ctx, citationID)
		if txErr != nil {
			return txErr
		}

		if txErr := e.citations.SoftDelete(ctx, citationID, now); txErr != nil {
			if errors.Is(txErr, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "citation not found")
			}
			return dErrors.Wrap(txErr, dErrors.CodeUnavailable, "delete citation")
		}

		return e.trail.Append(ctx, audit.EntityCitation, uuid.UUID(citationID),
			actor, audit.ActionDeleted, citationSnapshot(existing), nil, reason)
	})
	if err != nil {
		return err
	}

	if e.metrics != nil {
		e.metrics.CitationsDeleted.Inc()
	}
	e.logInfo(ctx, "citation deleted", "citation_id", citationID, "actor", actor, "reason", reason)
	return nil
}

// GetCitation returns a citation, soft-deleted ones included.
func (e *Engine) GetCitation(ctx context.Context, citationID id.CitationID) (*models.Citation, error) {
	citation, err := e.citations.FindByID(ctx, citationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "citation not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "find citation")
	}
	return citation, nil
}

// CheckTicketDuplicate reports whether a ticket number is already held by a
// non-deleted citation. Read-only; authoring UIs call it for live
// validation before submitting.
func (e *Engine) CheckTicketDuplicate(ctx context.Context, ticketNumber string) (bool, error) {
	ticketNumber = strings.TrimSpace(ticketNumber)
	inUse, err := e.citations.TicketNumberInUse(ctx, ticketNumber, id.CitationID{})
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "check ticket number")
	}
	return inUse, nil
}

// loadCitation fetches a non-deleted citation for mutation.
func (e *Engine) loadCitation(ctx context.Context, citationID id.CitationID) (*models.Citation, error) {
	citation, err := e.citations.FindByID(ctx, citationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "citation not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "find citation")
	}
	if citation.IsDeleted() {
		return nil, dErrors.New(dErrors.CodeNotFound, "citation not found")
	}
	return citation, nil
}

// resolveViolationTypes maps requested type IDs through the current catalog
// snapshot, preserving order.
func (e *Engine) resolveViolationTypes(typeIDs []id.ViolationTypeID) ([]*catalog.ViolationType, error) {
	snap := e.catalog.Snapshot()
	types := make([]*catalog.ViolationType, 0, len(typeIDs))
	for _, typeID := range typeIDs {
		vt, ok := snap.ByID(typeID)
		if !ok {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown violation type: "+typeID.String())
		}
		types = append(types, vt)
	}
	return types, nil
}

// computeLines builds violation lines with tiers from the driver's offense
// history, excluding the citation being created or edited.
func (e *Engine) computeLines(ctx context.Context, citationID id.CitationID, licenseNumber string, types []*catalog.ViolationType) ([]models.ViolationLine, error) {
	lines := make([]models.ViolationLine, 0, len(types))
	for _, vt := range types {
		prior, err := e.citations.CountPriorOffenses(ctx, licenseNumber, vt.ID, citationID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "count prior offenses")
		}
		tier := min(prior+1, catalog.MaxTier)
		fine, err := vt.FineForTier(tier)
		if err != nil {
			return nil, err
		}
		lines = append(lines, models.ViolationLine{
			CitationID:      citationID,
			ViolationTypeID: vt.ID,
			OffenseTier:     tier,
			FineAmount:      fine,
		})
	}
	return lines, nil
}

// citationSnapshot captures the audited view of a citation.
func citationSnapshot(c *models.Citation) map[string]any {
	lines := make([]map[string]any, 0, len(c.Lines))
	for _, line := range c.Lines {
		lines = append(lines, map[string]any{
			"violation_type_id": line.ViolationTypeID.String(),
			"offense_tier":      line.OffenseTier,
			"fine_amount":       line.FineAmount.String(),
		})
	}
	return map[string]any{
		"ticket_number":  c.TicketNumber,
		"driver_name":    c.DriverName,
		"license_number": c.LicenseNumber,
		"plate_number":   c.PlateNumber,
		"driver_address": c.DriverAddress,
		"lines":          lines,
		"total_fine":     c.TotalFine.String(),
		"status":         string(c.Status),
	}
}
