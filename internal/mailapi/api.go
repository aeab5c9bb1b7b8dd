// Package mailapi exposes the triage workflow over HTTP: classified-email
// ingestion, raw-email analysis, status transitions, and the dashboard
// projections.
package mailapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/GDLCMS/ARIA-AI-Agent/internal/classifier"
	"github.com/GDLCMS/ARIA-AI-Agent/internal/triage"
)

// TriageService defines the business operations mailapi needs.
type TriageService interface {
	IngestEmail(ctx context.Context, p *triage.IngestPayload) (*triage.IngestResult, error)
	TransitionStatus(ctx context.Context, emailID int64, newStatus triage.Status, notes *string) error
	GetEmail(ctx context.Context, emailID int64) (*triage.EmailRecord, bool, error)
	History(ctx context.Context, emailID int64) ([]triage.AuditEntry, error)
	ResolveFollowUp(ctx context.Context, followUpID int64) error
	TodaysEmails(ctx context.Context) ([]triage.TodayItem, error)
	OpenFollowUps(ctx context.Context) ([]triage.FollowUpItem, error)
	PendingEmails(ctx context.Context) ([]triage.PendingItem, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    TriageService
	cls    classifier.Classifier
	auth   func(http.Handler) http.Handler
}

// Option configures the API.
type Option func(*API)

// WithAuth wraps mutation endpoints with the given middleware.
func WithAuth(mw func(http.Handler) http.Handler) Option {
	return func(a *API) { a.auth = mw }
}

// New creates a new API handler. cls classifies raw emails submitted to the
// analyze endpoint.
func New(logger log.Logger, svc TriageService, cls classifier.Classifier, opts ...Option) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("triage service is required"))
	}
	if cls == nil {
		panic(xerrors.New("classifier is required"))
	}
	a := &API{
		logger: logger,
		svc:    svc,
		cls:    cls,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if a.auth != nil {
				r.Use(a.auth)
			}
			r.Post("/emails", a.handleIngest)
			r.Post("/analyze", a.handleAnalyze)
			r.Post("/reports", a.handleAgentReport)
			r.Post("/emails/{id}/status", a.handleTransition)
			r.Post("/followups/{id}/resolve", a.handleResolveFollowUp)
		})

		r.Get("/emails/pending", a.handlePending)
		r.Get("/emails/{id}", a.handleGetEmail)
		r.Get("/emails/{id}/history", a.handleHistory)
		r.Get("/dashboard/today", a.handleToday)
		r.Get("/dashboard/followups", a.handleFollowUps)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to HTTP responses. Validation failures name
// the offending field so the caller can fix and resubmit.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		valErr *triage.ValidationError
		nfErr  *triage.NotFoundError
		refErr *triage.ReferentialError
	)
	switch {
	case errors.As(err, &valErr):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":  "validation failed",
			"field":  valErr.Field,
			"reason": valErr.Reason,
		})
	case errors.As(err, &nfErr):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": nfErr.Error()})
	case errors.As(err, &refErr):
		writeJSON(w, http.StatusConflict, map[string]string{"error": refErr.Error()})
	default:
		a.logger.Error(r.Context(), err, "request failed", "path", r.URL.Path)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}
