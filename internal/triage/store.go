package triage

import (
	"context"
	"time"
)

// Store is the persistence boundary for email records, follow-up obligations,
// and the audit log. Each method runs as one atomic unit of work: a failure
// leaves every entity in its pre-call state.
type Store interface {
	// IngestEmail inserts the record and, when followUpDate is non-nil, its
	// obligation in the same transaction. Returns the storage-assigned EmailID.
	IngestEmail(ctx context.Context, rec *EmailRecord, followUpDate *time.Time) (int64, error)

	// GetEmail retrieves a record by ID. ok=false when absent.
	GetEmail(ctx context.Context, emailID int64) (*EmailRecord, bool, error)

	// FindBySenderSubject returns the EmailID of an existing record with the
	// same sender and subject, for re-ingestion dedup. ok=false when none.
	FindBySenderSubject(ctx context.Context, sender, subject string) (int64, bool, error)

	// TransitionStatus updates the workflow status and appends exactly one
	// audit entry in the same transaction. nil notes keeps the existing notes.
	// Returns NotFoundError (and writes nothing) when the email is absent.
	TransitionStatus(ctx context.Context, emailID int64, newStatus Status, notes *string, now time.Time) (*AuditEntry, error)

	// CreateObligation inserts a follow-up for an existing email.
	// Returns ReferentialError when the email does not exist.
	CreateObligation(ctx context.Context, emailID int64, due time.Time) (int64, error)

	// ResolveFollowUp marks an obligation resolved. Idempotent: resolving an
	// already-resolved obligation is a no-op. NotFoundError when absent.
	ResolveFollowUp(ctx context.Context, followUpID int64, now time.Time) error

	// MarkReminderSent flags an obligation as reminded. NotFoundError when absent.
	MarkReminderSent(ctx context.Context, followUpID int64) error

	// ListOpenFollowUps returns unresolved obligations joined with their owning
	// email, ordered by due date ascending, ties by insertion order.
	ListOpenFollowUps(ctx context.Context, today time.Time) ([]FollowUpItem, error)

	// History returns the audit entries for an email, ascending by time.
	History(ctx context.Context, emailID int64) ([]AuditEntry, error)

	// TodaysEmails returns records received on the given calendar day.
	TodaysEmails(ctx context.Context, day time.Time) ([]TodayItem, error)

	// PendingEmails returns PENDING records, urgency descending then newest first.
	PendingEmails(ctx context.Context) ([]PendingItem, error)
}
