package mailapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/GDLCMS/ARIA-AI-Agent/internal/classifier"
	"github.com/GDLCMS/ARIA-AI-Agent/internal/triage"
)

const bodyPreviewLen = 500

// ingestRequest is a finished classification plus its source fields, as
// submitted by the upstream classifier or an automation connector.
type ingestRequest struct {
	ThreadID    string    `json:"thread_id"`
	Sender      string    `json:"sender"`
	Subject     string    `json:"subject"`
	BodyPreview string    `json:"body_preview"`
	ReceivedAt  time.Time `json:"received_at"`

	Category                  string   `json:"category"`
	Urgency                   int      `json:"urgency"`
	Summary                   string   `json:"summary"`
	SuggestedAction           string   `json:"suggested_action"`
	DelegateTo                string   `json:"delegate_to"`
	DraftReply                string   `json:"draft_reply"`
	FollowUpDate              string   `json:"follow_up_date"` // YYYY-MM-DD, optional
	KeyEntities               []string `json:"key_entities"`
	RequiresEscalationContact bool     `json:"requires_escalation_contact"`
}

func (req *ingestRequest) toPayload() (*triage.IngestPayload, error) {
	p := &triage.IngestPayload{
		ThreadID:                  req.ThreadID,
		Sender:                    req.Sender,
		Subject:                   req.Subject,
		BodyPreview:               req.BodyPreview,
		ReceivedAt:                req.ReceivedAt,
		Category:                  triage.Category(req.Category),
		Urgency:                   req.Urgency,
		Summary:                   req.Summary,
		SuggestedAction:           triage.Action(req.SuggestedAction),
		DelegateTo:                req.DelegateTo,
		DraftReply:                req.DraftReply,
		KeyEntities:               req.KeyEntities,
		RequiresEscalationContact: req.RequiresEscalationContact,
	}
	if req.FollowUpDate != "" {
		d, err := time.Parse("2006-01-02", req.FollowUpDate)
		if err != nil {
			return nil, &triage.ValidationError{Field: "follow_up_date", Reason: "must be YYYY-MM-DD"}
		}
		p.FollowUpDate = &d
	}
	return p, nil
}

func (a *API) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	p, err := req.toPayload()
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	res, err := a.svc.IngestEmail(r.Context(), p)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if res.Duplicate {
		writeJSON(w, http.StatusConflict, map[string]any{
			"status":   "duplicate",
			"email_id": res.EmailID,
		})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"email_id": res.EmailID})
}

// analyzeRequest is a raw email from the inbound connector, not yet classified.
type analyzeRequest struct {
	Sender     string `json:"sender"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	ReceivedAt string `json:"received_at"`
	ThreadID   string `json:"thread_id"`
}

func (a *API) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	receivedAt := time.Now()
	if req.ReceivedAt != "" {
		if t, err := time.Parse(time.RFC3339, req.ReceivedAt); err == nil {
			receivedAt = t
		}
	}
	threadID := req.ThreadID
	if threadID == "" {
		threadID = "PA-" + ulid.Make().String()
	}

	email := &classifier.Email{
		Sender:     req.Sender,
		Subject:    req.Subject,
		Body:       req.Body,
		ThreadID:   threadID,
		ReceivedAt: receivedAt,
	}

	result, err := a.cls.Classify(r.Context(), email)
	if err != nil {
		a.logger.Error(r.Context(), err, "classification failed", "sender", req.Sender)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "classification failed"})
		return
	}

	res, err := a.svc.IngestEmail(r.Context(), classifiedPayload(email, result))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if res.Duplicate {
		writeJSON(w, http.StatusConflict, map[string]any{
			"status":   "duplicate",
			"email_id": res.EmailID,
		})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"status":   "success",
		"email_id": res.EmailID,
		"category": result.Category,
		"urgency":  result.Urgency,
		"action":   result.SuggestedAction,
		"summary":  result.Summary,
	})
}

// handleAgentReport ingests a plain-text agent triage report containing
// EMAIL_START/EMAIL_END blocks. Duplicates are counted, not errors.
func (a *API) handleAgentReport(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	parsed := classifier.ParseAgentBlocks(raw, time.Now())
	if len(parsed) == 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": "no EMAIL_START/EMAIL_END blocks found",
		})
		return
	}

	var saved, duplicates int
	for i := range parsed {
		res, err := a.svc.IngestEmail(r.Context(), classifiedPayload(&parsed[i].Email, &parsed[i].Result))
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		if res.Duplicate {
			duplicates++
			continue
		}
		saved++
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"found":      len(parsed),
		"saved":      saved,
		"duplicates": duplicates,
	})
}

// transitionRequest moves an email to a new workflow status. A null notes
// field keeps the existing notes.
type transitionRequest struct {
	NewStatus string  `json:"new_status"`
	Notes     *string `json:"notes"`
}

func (a *API) handleTransition(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid email id"})
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	if err := a.svc.TransitionStatus(r.Context(), id, triage.Status(req.NewStatus), req.Notes); err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "success",
		"email_id":   id,
		"new_status": req.NewStatus,
	})
}

func (a *API) handleGetEmail(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid email id"})
		return
	}

	rec, found, err := a.svc.GetEmail(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid email id"})
		return
	}

	entries, err := a.svc.History(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"email_id": id,
		"history":  entries,
	})
}

func (a *API) handleResolveFollowUp(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid follow-up id"})
		return
	}

	if err := a.svc.ResolveFollowUp(r.Context(), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "resolved",
		"follow_up_id": id,
	})
}

// classifiedPayload merges a raw email and its classification into the
// service ingestion payload, truncating the stored body preview.
func classifiedPayload(email *classifier.Email, result *classifier.Result) *triage.IngestPayload {
	preview := email.Body
	if len(preview) > bodyPreviewLen {
		preview = preview[:bodyPreviewLen]
	}
	return &triage.IngestPayload{
		ThreadID:                  email.ThreadID,
		Sender:                    email.Sender,
		Subject:                   email.Subject,
		BodyPreview:               preview,
		ReceivedAt:                email.ReceivedAt,
		Category:                  result.Category,
		Urgency:                   result.Urgency,
		Summary:                   result.Summary,
		SuggestedAction:           result.SuggestedAction,
		DelegateTo:                result.DelegateTo,
		DraftReply:                result.DraftReply,
		FollowUpDate:              result.FollowUpDate,
		KeyEntities:               result.KeyEntities,
		RequiresEscalationContact: result.RequiresEscalationContact,
	}
}
