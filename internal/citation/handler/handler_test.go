package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"citepay/internal/audit"
	"citepay/internal/catalog"
	"citepay/internal/citation/models"
	citationstore "citepay/internal/citation/store"
	"citepay/internal/lifecycle"
	paymentstore "citepay/internal/payment/store"
	httptransport "citepay/internal/transport/http"
	id "citepay/pkg/domain"
)

const testActor = "cashier-7"

type citationFixture struct {
	router   http.Handler
	speeding id.ViolationTypeID
}

func newCitationFixture(t *testing.T) *citationFixture {
	t.Helper()

	speeding := id.NewViolationTypeID()
	catStore := catalog.NewInMemory()
	catStore.Put(&catalog.ViolationType{
		ID: speeding, Code: "SPD", Name: "Speeding",
		FineFirst:  decimal.NewFromInt(500),
		FineSecond: decimal.NewFromInt(1000),
		FineThird:  decimal.NewFromInt(1500),
	})
	cat, err := catalog.New(context.Background(), catStore)
	if err != nil {
		t.Fatalf("failed to build catalog: %v", err)
	}

	engine := lifecycle.New(
		citationstore.NewInMemory(),
		paymentstore.NewInMemory(),
		audit.NewTrail(audit.NewInMemory()),
		cat,
		lifecycle.NewMemoryTx(),
	)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	r := chi.NewRouter()
	r.Use(httptransport.RequestContext)
	New(engine, logger).Register(r)
	return &citationFixture{router: r, speeding: speeding}
}

func (f *citationFixture) do(t *testing.T, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(httptransport.ActorHeader, testActor)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *citationFixture) createCitation(t *testing.T, ticket string) models.Citation {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/citations", map[string]any{
		"ticket_number":  ticket,
		"driver_name":    "Jordan Reyes",
		"license_number": "DL-1001",
		"plate_number":   "ABC-123",
		"violations":     []string{f.speeding.String()},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating citation, got %d: %s", rec.Code, rec.Body.String())
	}
	var citation models.Citation
	if err := json.NewDecoder(rec.Body).Decode(&citation); err != nil {
		t.Fatalf("failed to decode citation: %v", err)
	}
	return citation
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	return envelope.Error
}

func TestCreateCitationViaHandler(t *testing.T) {
	f := newCitationFixture(t)

	citation := f.createCitation(t, "TKT-001")
	if citation.ID.IsNil() {
		t.Fatalf("expected citation id in response")
	}
	if citation.Status != models.StatusPending {
		t.Fatalf("expected pending status, got %q", citation.Status)
	}
	if !citation.TotalFine.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected first-offense fine 500, got %s", citation.TotalFine)
	}
	if citation.CreatedBy != testActor {
		t.Fatalf("expected actor from header, got %q", citation.CreatedBy)
	}

	getRec := f.do(t, http.MethodGet, "/citations/"+citation.ID.String(), nil)
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching citation, got %d", getRec.Code)
	}
}

func TestCreateCitationRejectsMissingFields(t *testing.T) {
	f := newCitationFixture(t)

	rec := f.do(t, http.MethodPost, "/citations", map[string]any{
		"ticket_number": "TKT-001",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing fields, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "validation" {
		t.Fatalf("expected validation error code, got %q", code)
	}
}

func TestCreateCitationRejectsDuplicateTicket(t *testing.T) {
	f := newCitationFixture(t)
	f.createCitation(t, "TKT-001")

	rec := f.do(t, http.MethodPost, "/citations", map[string]any{
		"ticket_number":  "tkt-001",
		"driver_name":    "Casey Lin",
		"license_number": "DL-2002",
		"violations":     []string{f.speeding.String()},
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate ticket, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "duplicate_ticket_number" {
		t.Fatalf("expected duplicate_ticket_number, got %q", code)
	}
}

func TestGetCitationNotFound(t *testing.T) {
	f := newCitationFixture(t)

	rec := f.do(t, http.MethodGet, "/citations/"+id.NewCitationID().String(), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown citation, got %d", rec.Code)
	}

	badID := f.do(t, http.MethodGet, "/citations/not-a-uuid", nil)
	if badID.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", badID.Code)
	}
}

func TestUpdateCitationViaHandler(t *testing.T) {
	f := newCitationFixture(t)
	citation := f.createCitation(t, "TKT-001")

	rec := f.do(t, http.MethodPatch, "/citations/"+citation.ID.String(), map[string]any{
		"driver_name": "Jordan A. Reyes",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 updating citation, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated models.Citation
	if err := json.NewDecoder(rec.Body).Decode(&updated); err != nil {
		t.Fatalf("failed to decode updated citation: %v", err)
	}
	if updated.DriverName != "Jordan A. Reyes" {
		t.Fatalf("expected updated driver name, got %q", updated.DriverName)
	}
	if updated.TicketNumber != citation.TicketNumber {
		t.Fatalf("expected ticket number untouched, got %q", updated.TicketNumber)
	}
}

func TestChangeStatusViaHandler(t *testing.T) {
	f := newCitationFixture(t)
	citation := f.createCitation(t, "TKT-001")

	rec := f.do(t, http.MethodPost, "/citations/"+citation.ID.String()+"/status", map[string]any{
		"status": "contested",
		"reason": "driver filed a dispute",
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 changing status, got %d: %s", rec.Code, rec.Body.String())
	}

	paidRec := f.do(t, http.MethodPost, "/citations/"+citation.ID.String()+"/status", map[string]any{
		"status": "paid",
	})
	if paidRec.Code != http.StatusConflict {
		t.Fatalf("expected 409 setting paid directly, got %d", paidRec.Code)
	}
	if code := errorCode(t, paidRec); code != "invalid_transition" {
		t.Fatalf("expected invalid_transition, got %q", code)
	}
}

func TestDeleteCitationViaHandler(t *testing.T) {
	f := newCitationFixture(t)
	citation := f.createCitation(t, "TKT-001")

	rec := f.do(t, http.MethodDelete, "/citations/"+citation.ID.String(), map[string]any{
		"reason": "issued in error",
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 deleting citation, got %d: %s", rec.Code, rec.Body.String())
	}

	// The record stays readable for audit purposes.
	getRec := f.do(t, http.MethodGet, "/citations/"+citation.ID.String(), nil)
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching deleted citation, got %d", getRec.Code)
	}
	var deleted models.Citation
	if err := json.NewDecoder(getRec.Body).Decode(&deleted); err != nil {
		t.Fatalf("failed to decode deleted citation: %v", err)
	}
	if deleted.DeletedAt == nil {
		t.Fatalf("expected deleted_at to be set")
	}
}

func TestTicketCheckViaHandler(t *testing.T) {
	f := newCitationFixture(t)
	f.createCitation(t, "TKT-001")

	rec := f.do(t, http.MethodGet, "/citations/ticket-check?ticket_number=TKT-001", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from ticket check, got %d", rec.Code)
	}
	var resp map[string]bool
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode ticket check response: %v", err)
	}
	if !resp["in_use"] {
		t.Fatalf("expected in_use true for existing ticket")
	}

	freeRec := f.do(t, http.MethodGet, "/citations/ticket-check?ticket_number=TKT-999", nil)
	var free map[string]bool
	if err := json.NewDecoder(freeRec.Body).Decode(&free); err != nil {
		t.Fatalf("failed to decode ticket check response: %v", err)
	}
	if free["in_use"] {
		t.Fatalf("expected in_use false for unused ticket")
	}
}

func TestCitationHistoryViaHandler(t *testing.T) {
	f := newCitationFixture(t)
	citation := f.createCitation(t, "TKT-001")
	f.do(t, http.MethodPatch, "/citations/"+citation.ID.String(), map[string]any{
		"driver_name": "Jordan A. Reyes",
	})

	rec := f.do(t, http.MethodGet, "/citations/"+citation.ID.String()+"/history", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching history, got %d", rec.Code)
	}
	var page HistoryResponse
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("failed to decode history: %v", err)
	}
	if len(page.Entries) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(page.Entries))
	}
	if page.Entries[0].Action != audit.ActionCreated || page.Entries[1].Action != audit.ActionUpdated {
		t.Fatalf("expected created then updated, got %q then %q",
			page.Entries[0].Action, page.Entries[1].Action)
	}
}
