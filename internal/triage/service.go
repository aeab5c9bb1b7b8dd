package triage

import (
	"context"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// IngestPayload is a finished classification submitted by the upstream
// classifier, plus the source fields of the message it classified.
type IngestPayload struct {
	ThreadID    string
	Sender      string
	Subject     string
	BodyPreview string
	ReceivedAt  time.Time

	Category                  Category
	Urgency                   int
	Summary                   string
	SuggestedAction           Action
	DelegateTo                string
	DraftReply                string
	FollowUpDate              *time.Time
	KeyEntities               []string
	RequiresEscalationContact bool
}

// IngestResult is the outcome of submitting a classified email for triage.
type IngestResult struct {
	EmailID   int64
	Duplicate bool
}

// Notifier delivers escalation notices for emails that need the escalation
// contact's attention. Delivery is best-effort and never fails ingestion.
type Notifier interface {
	Escalate(ctx context.Context, rec *EmailRecord) error
}

// Service is the business boundary for triage operations. It exclusively owns
// write access to the store; the dashboard projections only read.
type Service struct {
	store    Store
	logger   log.Logger
	metrics  *Metrics
	notifier Notifier
	now      func() time.Time
}

// NewService creates a new triage service. notifier may be nil.
func NewService(store Store, logger log.Logger, metrics *Metrics, notifier Notifier) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:    store,
		logger:   logger,
		metrics:  metrics,
		notifier: notifier,
		now:      time.Now,
	}
}

// IngestEmail validates and persists a classified email, creating its
// follow-up obligation in the same unit of work when a due date is present.
// Re-ingestion of an email with the same sender and subject is reported as a
// duplicate and writes nothing.
func (s *Service) IngestEmail(ctx context.Context, p *IngestPayload) (*IngestResult, error) {
	if err := validatePayload(p); err != nil {
		s.metrics.IncIngest("invalid")
		s.metrics.IncValidationFailure(err.Field)
		return nil, err
	}

	if existing, ok, err := s.store.FindBySenderSubject(ctx, p.Sender, p.Subject); err != nil {
		s.metrics.IncIngest("error")
		return nil, err
	} else if ok {
		s.logger.Info(ctx, "duplicate email skipped", "email_id", existing, "sender", p.Sender)
		s.metrics.IncIngest("duplicate")
		return &IngestResult{EmailID: existing, Duplicate: true}, nil
	}

	now := s.now()
	rec := &EmailRecord{
		ThreadID:                  p.ThreadID,
		Sender:                    p.Sender,
		Subject:                   p.Subject,
		BodyPreview:               p.BodyPreview,
		ReceivedAt:                p.ReceivedAt,
		Category:                  p.Category,
		Urgency:                   p.Urgency,
		Summary:                   p.Summary,
		SuggestedAction:           p.SuggestedAction,
		DelegateTo:                p.DelegateTo,
		DraftReply:                p.DraftReply,
		FollowUpDate:              p.FollowUpDate,
		KeyEntities:               p.KeyEntities,
		RequiresEscalationContact: p.RequiresEscalationContact,
		Status:                    StatusPending,
		StatusUpdatedAt:           now,
	}

	id, err := s.store.IngestEmail(ctx, rec, p.FollowUpDate)
	if err != nil {
		s.metrics.IncIngest("error")
		return nil, err
	}
	rec.EmailID = id

	s.logger.Info(ctx, "email ingested",
		"email_id", id,
		"category", rec.Category,
		"urgency", rec.Urgency,
		"action", rec.SuggestedAction,
		"follow_up", p.FollowUpDate != nil,
	)
	s.metrics.IncIngest("accepted")
	if p.FollowUpDate != nil {
		s.metrics.IncFollowUpCreated()
	}

	if s.notifier != nil && (rec.RequiresEscalationContact || rec.Urgency >= 4) {
		// best-effort, detached from the request lifetime
		go s.sendEscalation(context.WithoutCancel(ctx), rec)
	}

	return &IngestResult{EmailID: id}, nil
}

// TransitionStatus moves an email to a new workflow status. Any status may be
// set to any other valid status; every successful transition is paired with
// exactly one audit entry inside the store transaction. nil notes keeps the
// existing notes.
func (s *Service) TransitionStatus(ctx context.Context, emailID int64, newStatus Status, notes *string) error {
	if !newStatus.Valid() {
		s.metrics.IncValidationFailure("new_status")
		return &ValidationError{Field: "new_status", Reason: "unknown status " + string(newStatus)}
	}

	entry, err := s.store.TransitionStatus(ctx, emailID, newStatus, notes, s.now())
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "status transition",
		"email_id", emailID,
		"old_status", entry.OldStatus,
		"new_status", entry.NewStatus,
	)
	s.metrics.IncTransition(string(entry.OldStatus), string(entry.NewStatus))
	return nil
}

// GetEmail retrieves an email record by ID.
func (s *Service) GetEmail(ctx context.Context, emailID int64) (*EmailRecord, bool, error) {
	return s.store.GetEmail(ctx, emailID)
}

// History returns the full status history of an email, oldest first.
func (s *Service) History(ctx context.Context, emailID int64) ([]AuditEntry, error) {
	return s.store.History(ctx, emailID)
}

// CreateObligation records a follow-up for an existing email outside the
// ingestion path. The store rejects unknown emails with ReferentialError.
func (s *Service) CreateObligation(ctx context.Context, emailID int64, due time.Time) (int64, error) {
	id, err := s.store.CreateObligation(ctx, emailID, due)
	if err != nil {
		return 0, err
	}
	s.metrics.IncFollowUpCreated()
	return id, nil
}

// ResolveFollowUp closes an obligation. Resolving twice is a no-op.
func (s *Service) ResolveFollowUp(ctx context.Context, followUpID int64) error {
	if err := s.store.ResolveFollowUp(ctx, followUpID, s.now()); err != nil {
		return err
	}
	s.metrics.IncFollowUpResolved()
	return nil
}

// MarkReminderSent flags an obligation so the external reminder sender does
// not notify twice.
func (s *Service) MarkReminderSent(ctx context.Context, followUpID int64) error {
	return s.store.MarkReminderSent(ctx, followUpID)
}

// TodaysEmails returns emails received on the current calendar date with
// their derived urgency labels.
func (s *Service) TodaysEmails(ctx context.Context) ([]TodayItem, error) {
	return s.store.TodaysEmails(ctx, s.now())
}

// OpenFollowUps returns unresolved obligations, earliest due first.
func (s *Service) OpenFollowUps(ctx context.Context) ([]FollowUpItem, error) {
	return s.store.ListOpenFollowUps(ctx, s.now())
}

// PendingEmails returns the triage queue, most urgent and newest first.
func (s *Service) PendingEmails(ctx context.Context) ([]PendingItem, error) {
	return s.store.PendingEmails(ctx)
}

func (s *Service) sendEscalation(ctx context.Context, rec *EmailRecord) {
	if err := s.notifier.Escalate(ctx, rec); err != nil {
		s.logger.Error(ctx, err, "escalation notice failed", "email_id", rec.EmailID)
		s.metrics.IncEscalation("error")
		return
	}
	s.metrics.IncEscalation("sent")
}

func validatePayload(p *IngestPayload) *ValidationError {
	switch {
	case p.Sender == "":
		return &ValidationError{Field: "sender", Reason: "required"}
	case p.Subject == "":
		return &ValidationError{Field: "subject", Reason: "required"}
	case p.ReceivedAt.IsZero():
		return &ValidationError{Field: "received_at", Reason: "required"}
	case !p.Category.Valid():
		return &ValidationError{Field: "category", Reason: "unknown category " + string(p.Category)}
	case p.Urgency < 1 || p.Urgency > 5:
		return &ValidationError{Field: "urgency", Reason: "must be in [1,5]"}
	case !p.SuggestedAction.Valid():
		return &ValidationError{Field: "suggested_action", Reason: "unknown action " + string(p.SuggestedAction)}
	}
	return nil
}
