// Package api - HTTP surface tests
// The API layer is thin; these tests check status mapping and wire shapes,
// not calculation semantics.
package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"port-dues/core/engine"
	"port-dues/core/tariff"
	"port-dues/tariffdata"
)

const publishBody = `{
  "schedules": [
    {
      "port": "DUR",
      "effective_at": "2024-01-01",
      "tiers": [
        {
          "rule_id": "pd-all",
          "due_type": "port_dues",
          "min_gt": "0",
          "rate": "0.05",
          "unit": "per_gt_per_day",
          "currency": "ZAR",
          "effective_from": "2024-01-01"
        }
      ],
      "fees": [
        {
          "rule_id": "ld-flat",
          "due_type": "light_dues",
          "rate": "500",
          "unit": "flat",
          "currency": "ZAR",
          "effective_from": "2024-01-01"
        }
      ]
    }
  ]
}`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := zap.NewNop()
	repo := tariff.NewRepository(logger)

	schedules, err := tariffdata.ParseJSON([]byte(publishBody))
	if err != nil {
		t.Fatalf("fixture payload invalid: %v", err)
	}
	for _, s := range schedules {
		if _, err := repo.Publish(s); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	eng := engine.New(repo, nil, logger)
	return NewServer("test", eng, repo, nil, logger)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

// TestCalculateEndpoint proves a valid request returns amounts as fixed
// two-place decimal strings.
func TestCalculateEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/calculate", `{
		"port": "DUR",
		"gross_tonnage": "51300",
		"arrival_date": "2024-01-10",
		"departure_date": "2024-01-13"
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp CalculateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Response not JSON: %v", err)
	}
	if resp.RequestID == "" {
		t.Error("Response has no request id")
	}
	if len(resp.LineItems) != 2 {
		t.Fatalf("Got %d line items, want 2", len(resp.LineItems))
	}
	if resp.Totals["ZAR"] != "8195.00" {
		t.Errorf("ZAR total = %q, want 8195.00", resp.Totals["ZAR"])
	}
	for _, item := range resp.LineItems {
		if !strings.Contains(item.BaseAmount, ".") {
			t.Errorf("Amount %q is not fixed two-place", item.BaseAmount)
		}
	}
	if resp.ScheduleVersion == "" {
		t.Error("Response does not record the schedule version")
	}
}

// TestValidationErrorIs400 proves caller mistakes map to 400 with the
// field-naming message intact.
func TestValidationErrorIs400(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/calculate", `{
		"port": "DUR",
		"gross_tonnage": "-5",
		"arrival_date": "2024-01-10",
		"departure_date": "2024-01-13"
	}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "gross_tonnage") {
		t.Errorf("Error does not name the field: %s", rec.Body.String())
	}
}

// TestUnknownScheduleIs404 proves a missing snapshot maps to 404
func TestUnknownScheduleIs404(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/calculate", `{
		"port": "DUR",
		"gross_tonnage": "100",
		"arrival_date": "2024-01-10",
		"departure_date": "2024-01-13",
		"schedule_version": "ffffffffffffffff"
	}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Status = %d, want 404: %s", rec.Code, rec.Body.String())
	}
}

// TestMalformedBodyIs400 proves undecodable JSON is a caller error
func TestMalformedBodyIs400(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/calculate", `{broken`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Status = %d, want 400", rec.Code)
	}
}

// TestPublishEndpoint proves publication returns 201 with the accepted
// versions and the schedule becomes listable.
func TestPublishEndpoint(t *testing.T) {
	logger := zap.NewNop()
	repo := tariff.NewRepository(logger)
	s := NewServer("test", engine.New(repo, nil, logger), repo, nil, logger)

	rec := do(t, s, http.MethodPost, "/schedules", publishBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp PublishResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Response not JSON: %v", err)
	}
	if len(resp.Published) != 1 || resp.Published[0].Port != "DUR" {
		t.Errorf("Published = %+v", resp.Published)
	}
	if resp.Published[0].Version == "" {
		t.Error("Publication did not report a version")
	}

	rec = do(t, s, http.MethodGet, "/schedules", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("List status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "DUR") {
		t.Errorf("Listing does not include the published port: %s", rec.Body.String())
	}
}

// TestPublishRejectsCorruptPayload proves invalid tariff data never
// becomes a published snapshot.
func TestPublishRejectsCorruptPayload(t *testing.T) {
	logger := zap.NewNop()
	repo := tariff.NewRepository(logger)
	s := NewServer("test", engine.New(repo, nil, logger), repo, nil, logger)

	overlapping := `{
	  "schedules": [{
	    "port": "DUR",
	    "effective_at": "2024-01-01",
	    "tiers": [
	      {"rule_id": "a", "due_type": "port_dues", "min_gt": "0", "max_gt": "10000",
	       "rate": "1", "unit": "flat", "currency": "ZAR", "effective_from": "2024-01-01"},
	      {"rule_id": "b", "due_type": "port_dues", "min_gt": "5000",
	       "rate": "2", "unit": "flat", "currency": "ZAR", "effective_from": "2024-01-01"}
	    ]
	  }]
	}`
	rec := do(t, s, http.MethodPost, "/schedules", overlapping)
	if rec.Code == http.StatusCreated {
		t.Fatal("Overlapping tiers were published")
	}
	if repo.HasSchedule("DUR") {
		t.Error("Rejected payload still installed a schedule")
	}
}

// TestHealthAndVersion proves the operational endpoints respond
func TestHealthAndVersion(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Errorf("Health status = %d", rec.Code)
	}
	rec = do(t, s, http.MethodGet, "/version", "")
	if rec.Code != http.StatusOK {
		t.Errorf("Version status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "test") {
		t.Errorf("Version body = %s", rec.Body.String())
	}
}
