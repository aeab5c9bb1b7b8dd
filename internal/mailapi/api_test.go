package mailapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/GDLCMS/ARIA-AI-Agent/internal/authmw"
	"github.com/GDLCMS/ARIA-AI-Agent/internal/classifier"
	"github.com/GDLCMS/ARIA-AI-Agent/internal/triage"
	"github.com/GDLCMS/ARIA-AI-Agent/internal/triage/memstore"
)

// stubClassifier returns a canned result so analyze tests do not depend on
// the rule tables.
type stubClassifier struct {
	res *classifier.Result
	err error
}

func (s *stubClassifier) Classify(context.Context, *classifier.Email) (*classifier.Result, error) {
	return s.res, s.err
}

func defaultStub() *stubClassifier {
	return &stubClassifier{res: &classifier.Result{
		Category:        triage.CategoryVendorSecurity,
		Urgency:         3,
		Summary:         "Needs review.",
		SuggestedAction: triage.ActionFollowUp,
	}}
}

func newTestRouter(t *testing.T, opts ...Option) chi.Router {
	t.Helper()
	svc := triage.NewService(memstore.New(), nil, nil, nil)
	api := New(nil, svc, defaultStub(), opts...)
	r := chi.NewRouter()
	api.RegisterRoutes(r)
	return r
}

func ingestBody(sender, subject string) string {
	return fmt.Sprintf(`{
		"thread_id": "T-1",
		"sender": %q,
		"subject": %q,
		"body_preview": "preview",
		"received_at": %q,
		"category": "VENDOR_SECURITY",
		"urgency": 4,
		"summary": "Needs review.",
		"suggested_action": "FOLLOW_UP",
		"follow_up_date": "2026-03-17"
	}`, sender, subject, time.Now().UTC().Format(time.RFC3339))
}

func doJSON(t *testing.T, r chi.Router, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("%s %s: invalid JSON response %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec, decoded
}

//  New / constructor

func TestNew_NilLogger(t *testing.T) {
	t.Parallel()

	svc := triage.NewService(memstore.New(), nil, nil, nil)
	api := New(nil, svc, defaultStub())
	if api.logger == nil {
		t.Fatal("New left logger nil; expected Nop logger")
	}
}

func TestNew_NilService_Panics(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for nil service")
		}
	}()
	New(nil, nil, defaultStub())
}

func TestNew_NilClassifier_Panics(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for nil classifier")
		}
	}()
	New(nil, triage.NewService(memstore.New(), nil, nil, nil), nil)
}

// Ingestion

func TestIngest(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)

	rec, body := doJSON(t, r, http.MethodPost, "/api/v1/emails", ingestBody("a@x.example", "one"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if body["email_id"].(float64) != 1 {
		t.Errorf("email_id = %v, want 1", body["email_id"])
	}

	// same sender+subject is reported as a duplicate and writes nothing
	rec, body = doJSON(t, r, http.MethodPost, "/api/v1/emails", ingestBody("a@x.example", "one"))
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", rec.Code)
	}
	if body["status"] != "duplicate" || body["email_id"].(float64) != 1 {
		t.Errorf("duplicate body = %v", body)
	}
}

func TestIngest_BadRequests(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)

	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"invalid JSON", `{bad`, ""},
		{"missing sender", strings.Replace(ingestBody("a@x.example", "s"), `"a@x.example"`, `""`, 1), "sender"},
		{"bad follow_up_date", strings.Replace(ingestBody("a@x.example", "s"), "2026-03-17", "soon", 1), "follow_up_date"},
		{"bad urgency", strings.Replace(ingestBody("a@x.example", "s"), `"urgency": 4`, `"urgency": 9`, 1), "urgency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec, body := doJSON(t, r, http.MethodPost, "/api/v1/emails", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
			}
			if tt.wantField != "" && body["field"] != tt.wantField {
				t.Errorf("field = %v, want %q", body["field"], tt.wantField)
			}
		})
	}
}

func TestIngest_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec, _ := doJSON(t, r, method, "/api/v1/emails", "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s /api/v1/emails = %d, want 405", method, rec.Code)
		}
	}
}

// Analyze

func TestAnalyze(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)

	rec, body := doJSON(t, r, http.MethodPost, "/api/v1/analyze",
		`{"sender":"raw@x.example","subject":"raw email","body":"please review"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if body["category"] != "VENDOR_SECURITY" {
		t.Errorf("category = %v", body["category"])
	}
	if body["email_id"].(float64) == 0 {
		t.Error("email_id missing in analyze response")
	}

	// the ingested record is readable afterwards
	id := int64(body["email_id"].(float64))
	rec, got := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/emails/%d", id), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if got["status"] != string(triage.StatusPending) {
		t.Errorf("new record status = %v, want PENDING", got["status"])
	}
	if got["thread_id"] == "" {
		t.Error("thread_id not assigned")
	}
}

func TestAnalyze_ClassifierError(t *testing.T) {
	t.Parallel()

	svc := triage.NewService(memstore.New(), nil, nil, nil)
	api := New(nil, svc, &stubClassifier{err: errors.New("model unavailable")})
	r := chi.NewRouter()
	api.RegisterRoutes(r)

	rec, _ := doJSON(t, r, http.MethodPost, "/api/v1/analyze",
		`{"sender":"raw@x.example","subject":"raw email","body":"x"}`)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

// Agent reports

func TestAgentReport(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)

	report := `EMAIL_START
FROM: vendor@acme.example
SUBJECT: Annex overdue
CATEGORY: VENDOR_SECURITY
URGENCY: 3
SUMMARY: Overdue annex.
ACTION: REPLY_NOW
EMAIL_END
EMAIL_START
FROM: vendor@acme.example
SUBJECT: Annex overdue
CATEGORY: VENDOR_SECURITY
URGENCY: 3
SUMMARY: Same email again.
ACTION: REPLY_NOW
EMAIL_END`

	rec, body := doJSON(t, r, http.MethodPost, "/api/v1/reports", report)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if body["found"].(float64) != 2 || body["saved"].(float64) != 1 || body["duplicates"].(float64) != 1 {
		t.Errorf("body = %v, want found 2 saved 1 duplicates 1", body)
	}
}

func TestAgentReport_NoBlocks(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	rec, _ := doJSON(t, r, http.MethodPost, "/api/v1/reports", "just some prose")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

// Transitions and history

func TestTransition(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	doJSON(t, r, http.MethodPost, "/api/v1/emails", ingestBody("a@x.example", "one"))

	rec, body := doJSON(t, r, http.MethodPost, "/api/v1/emails/1/status",
		`{"new_status":"APPROVED","notes":"looks good"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if body["new_status"] != "APPROVED" {
		t.Errorf("body = %v", body)
	}

	// null notes keeps existing notes
	rec, _ = doJSON(t, r, http.MethodPost, "/api/v1/emails/1/status",
		`{"new_status":"SENT","notes":null}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	rec, got := doJSON(t, r, http.MethodGet, "/api/v1/emails/1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if got["status"] != "SENT" || got["notes"] != "looks good" {
		t.Errorf("record = %v, want SENT with kept notes", got)
	}

	rec, hist := doJSON(t, r, http.MethodGet, "/api/v1/emails/1/history", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d", rec.Code)
	}
	entries := hist["history"].([]any)
	if len(entries) != 2 {
		t.Fatalf("history = %d entries, want 2", len(entries))
	}
	first := entries[0].(map[string]any)
	if first["old_status"] != "PENDING" || first["new_status"] != "APPROVED" {
		t.Errorf("first entry = %v", first)
	}
}

func TestTransition_Errors(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	doJSON(t, r, http.MethodPost, "/api/v1/emails", ingestBody("a@x.example", "one"))

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
	}{
		{"unknown email", "/api/v1/emails/99/status", `{"new_status":"APPROVED"}`, http.StatusNotFound},
		{"invalid status", "/api/v1/emails/1/status", `{"new_status":"DONE"}`, http.StatusBadRequest},
		{"bad id", "/api/v1/emails/abc/status", `{"new_status":"APPROVED"}`, http.StatusBadRequest},
		{"invalid JSON", "/api/v1/emails/1/status", `{bad`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec, _ := doJSON(t, r, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestGetEmail_NotFound(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	rec, _ := doJSON(t, r, http.MethodGet, "/api/v1/emails/42", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

// Follow-ups

func TestResolveFollowUp(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	doJSON(t, r, http.MethodPost, "/api/v1/emails", ingestBody("a@x.example", "one"))

	rec, body := doJSON(t, r, http.MethodGet, "/api/v1/dashboard/followups", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("followups status = %d", rec.Code)
	}
	if body["count"].(float64) != 1 {
		t.Fatalf("open follow-ups = %v, want 1", body["count"])
	}
	item := body["follow_ups"].([]any)[0].(map[string]any)
	fuID := int64(item["follow_up_id"].(float64))

	rec, _ = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/followups/%d/resolve", fuID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve status = %d", rec.Code)
	}
	// resolving twice is still a 200
	rec, _ = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/followups/%d/resolve", fuID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("second resolve status = %d", rec.Code)
	}

	rec, body = doJSON(t, r, http.MethodGet, "/api/v1/dashboard/followups", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("followups status = %d", rec.Code)
	}
	if body["count"].(float64) != 0 {
		t.Errorf("open follow-ups after resolve = %v, want 0", body["count"])
	}
}

func TestResolveFollowUp_NotFound(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	rec, _ := doJSON(t, r, http.MethodPost, "/api/v1/followups/9/resolve", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

// Dashboards

func TestDashboards_EmptyCollections(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)

	for _, path := range []string{"/api/v1/dashboard/today", "/api/v1/dashboard/followups", "/api/v1/emails/pending"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
		if strings.Contains(rec.Body.String(), "null") {
			t.Errorf("GET %s body = %s, empty collections should serialize as []", path, rec.Body.String())
		}
	}
}

func TestDashboardToday(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	doJSON(t, r, http.MethodPost, "/api/v1/emails", ingestBody("a@x.example", "one"))

	rec, body := doJSON(t, r, http.MethodGet, "/api/v1/dashboard/today", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["count"].(float64) != 1 {
		t.Fatalf("count = %v, want 1", body["count"])
	}
	item := body["emails"].([]any)[0].(map[string]any)
	if item["urgency_label"] != "High" {
		t.Errorf("urgency_label = %v, want High for urgency 4", item["urgency_label"])
	}
}

func TestPendingQueue(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	doJSON(t, r, http.MethodPost, "/api/v1/emails", ingestBody("a@x.example", "one"))
	doJSON(t, r, http.MethodPost, "/api/v1/emails",
		strings.Replace(ingestBody("b@x.example", "two"), `"urgency": 4`, `"urgency": 5`, 1))
	doJSON(t, r, http.MethodPost, "/api/v1/emails/1/status", `{"new_status":"ARCHIVED"}`)

	rec, body := doJSON(t, r, http.MethodGet, "/api/v1/emails/pending", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["count"].(float64) != 1 {
		t.Fatalf("count = %v, want 1 (archived excluded)", body["count"])
	}
	item := body["emails"].([]any)[0].(map[string]any)
	if item["email_id"].(float64) != 2 {
		t.Errorf("pending head = %v, want email 2", item)
	}
}

// Auth

func TestAuth_GuardsMutations(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, WithAuth(authmw.BearerToken("secret")))

	// mutation without token is rejected
	rec, _ := doJSON(t, r, http.MethodPost, "/api/v1/emails", ingestBody("a@x.example", "one"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated POST = %d, want 401", rec.Code)
	}

	// mutation with token passes
	req := httptest.NewRequest(http.MethodPost, "/api/v1/emails", strings.NewReader(ingestBody("a@x.example", "one")))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer secret")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("authenticated POST = %d, want 201: %s", rr.Code, rr.Body.String())
	}

	// reads stay open
	rec, _ = doJSON(t, r, http.MethodGet, "/api/v1/emails/pending", "")
	if rec.Code != http.StatusOK {
		t.Errorf("unauthenticated GET = %d, want 200", rec.Code)
	}
}
