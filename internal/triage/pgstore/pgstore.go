// Package pgstore provides a PostgreSQL implementation of triage.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/GDLCMS/ARIA-AI-Agent/internal/triage"
)

var tracer = otel.Tracer("github.com/GDLCMS/ARIA-AI-Agent/internal/triage/pgstore")

//go:embed schema.sql
var schema string

// Store persists email records, follow-ups, and the audit log in PostgreSQL.
// Each Store method is one transaction; a failure rolls back every write.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store on the given pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const emailColumns = `email_id, thread_id, sender, subject, body_preview, received_at,
	category, urgency, summary, suggested_action, delegate_to, draft_reply,
	follow_up_date, key_entities, requires_escalation_contact,
	status, status_updated_at, notes`

// IngestEmail inserts the record and, when followUpDate is set, its obligation
// in one transaction. Returns the generated EmailID.
func (s *Store) IngestEmail(ctx context.Context, rec *triage.EmailRecord, followUpDate *time.Time) (int64, error) {
	ctx, span := startSpan(ctx, "pgstore.IngestEmail", "INSERT")
	defer span.End()

	entitiesJSON, err := json.Marshal(rec.KeyEntities)
	if err != nil {
		return 0, fail(span, fmt.Errorf("marshal key entities: %w", err))
	}
	if rec.KeyEntities == nil {
		entitiesJSON = []byte("[]")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fail(span, &triage.StorageError{Op: "ingest email", Err: err})
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	var emailID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO emails (
			thread_id, sender, subject, body_preview, received_at,
			category, urgency, summary, suggested_action, delegate_to, draft_reply,
			follow_up_date, key_entities, requires_escalation_contact,
			status, status_updated_at, notes
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING email_id`,
		rec.ThreadID, rec.Sender, rec.Subject, rec.BodyPreview, rec.ReceivedAt,
		string(rec.Category), rec.Urgency, rec.Summary, string(rec.SuggestedAction),
		rec.DelegateTo, rec.DraftReply, rec.FollowUpDate, entitiesJSON,
		rec.RequiresEscalationContact, string(rec.Status), rec.StatusUpdatedAt, rec.Notes,
	).Scan(&emailID)
	if err != nil {
		return 0, fail(span, &triage.StorageError{Op: "insert email", Err: err})
	}

	if followUpDate != nil {
		if _, err := tx.Exec(ctx,
			`INSERT INTO follow_ups (email_id, follow_up_date) VALUES ($1, $2)`,
			emailID, *followUpDate,
		); err != nil {
			return 0, fail(span, &triage.StorageError{Op: "insert follow-up", Err: err})
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fail(span, &triage.StorageError{Op: "commit ingest", Err: err})
	}

	span.SetAttributes(attribute.Int64("aria.email.id", emailID))
	return emailID, nil
}

// GetEmail retrieves a record by ID.
func (s *Store) GetEmail(ctx context.Context, emailID int64) (*triage.EmailRecord, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.GetEmail", "SELECT")
	defer span.End()

	query := `SELECT ` + emailColumns + ` FROM emails WHERE email_id = $1`
	rec, err := scanEmailRow(s.pool.QueryRow(ctx, query, emailID))
	if err != nil {
		return nil, false, fail(span, err)
	}
	if rec == nil {
		return nil, false, nil
	}
	return rec, true, nil
}

// FindBySenderSubject returns the oldest EmailID matching sender and subject.
func (s *Store) FindBySenderSubject(ctx context.Context, sender, subject string) (int64, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.FindBySenderSubject", "SELECT")
	defer span.End()

	var id int64
	err := s.pool.QueryRow(ctx,
		`SELECT email_id FROM emails WHERE sender = $1 AND subject = $2 ORDER BY email_id LIMIT 1`,
		sender, subject,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fail(span, &triage.StorageError{Op: "find by sender/subject", Err: err})
	}
	return id, true, nil
}

// TransitionStatus serializes on the email row, updates the workflow fields,
// and appends exactly one audit entry, all in one transaction. The row lock
// guarantees each concurrent transition records the genuinely-prior status.
func (s *Store) TransitionStatus(ctx context.Context, emailID int64, newStatus triage.Status, notes *string, now time.Time) (*triage.AuditEntry, error) {
	ctx, span := startSpan(ctx, "pgstore.TransitionStatus", "UPDATE")
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fail(span, &triage.StorageError{Op: "transition status", Err: err})
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	var oldStatus string
	err = tx.QueryRow(ctx,
		`SELECT status FROM emails WHERE email_id = $1 FOR UPDATE`, emailID,
	).Scan(&oldStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fail(span, &triage.NotFoundError{Kind: "email", ID: emailID})
	}
	if err != nil {
		return nil, fail(span, &triage.StorageError{Op: "lock email row", Err: err})
	}

	// COALESCE keeps the existing notes when the caller passes nil.
	if _, err := tx.Exec(ctx,
		`UPDATE emails SET status = $2, status_updated_at = $3, notes = COALESCE($4, notes)
		 WHERE email_id = $1`,
		emailID, string(newStatus), now, notes,
	); err != nil {
		return nil, fail(span, &triage.StorageError{Op: "update status", Err: err})
	}

	entry := &triage.AuditEntry{
		EmailID:     emailID,
		Action:      triage.AuditActionStatusChange,
		PerformedAt: now,
		OldStatus:   triage.Status(oldStatus),
		NewStatus:   newStatus,
	}
	if notes != nil {
		entry.Notes = *notes
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO audit_log (email_id, action, performed_at, old_status, new_status, notes)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING audit_id`,
		emailID, entry.Action, now, oldStatus, string(newStatus), entry.Notes,
	).Scan(&entry.AuditID)
	if err != nil {
		return nil, fail(span, &triage.StorageError{Op: "append audit entry", Err: err})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fail(span, &triage.StorageError{Op: "commit transition", Err: err})
	}

	span.SetAttributes(
		attribute.String("aria.status.old", oldStatus),
		attribute.String("aria.status.new", string(newStatus)),
	)
	return entry, nil
}

// CreateObligation inserts a follow-up for an existing email.
func (s *Store) CreateObligation(ctx context.Context, emailID int64, due time.Time) (int64, error) {
	ctx, span := startSpan(ctx, "pgstore.CreateObligation", "INSERT")
	defer span.End()

	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM emails WHERE email_id = $1)`, emailID,
	).Scan(&exists); err != nil {
		return 0, fail(span, &triage.StorageError{Op: "check email exists", Err: err})
	}
	if !exists {
		return 0, fail(span, &triage.ReferentialError{EmailID: emailID})
	}

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO follow_ups (email_id, follow_up_date) VALUES ($1, $2) RETURNING follow_up_id`,
		emailID, due,
	).Scan(&id)
	if err != nil {
		return 0, fail(span, &triage.StorageError{Op: "insert follow-up", Err: err})
	}
	return id, nil
}

// ResolveFollowUp closes an obligation. A second resolve matches no row and
// is a no-op.
func (s *Store) ResolveFollowUp(ctx context.Context, followUpID int64, now time.Time) error {
	ctx, span := startSpan(ctx, "pgstore.ResolveFollowUp", "UPDATE")
	defer span.End()

	tag, err := s.pool.Exec(ctx,
		`UPDATE follow_ups SET resolved = TRUE, resolved_at = $2
		 WHERE follow_up_id = $1 AND NOT resolved`,
		followUpID, now,
	)
	if err != nil {
		return fail(span, &triage.StorageError{Op: "resolve follow-up", Err: err})
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM follow_ups WHERE follow_up_id = $1)`, followUpID,
	).Scan(&exists); err != nil {
		return fail(span, &triage.StorageError{Op: "check follow-up exists", Err: err})
	}
	if !exists {
		return fail(span, &triage.NotFoundError{Kind: "follow_up", ID: followUpID})
	}
	return nil // already resolved
}

// MarkReminderSent flags an obligation as reminded.
func (s *Store) MarkReminderSent(ctx context.Context, followUpID int64) error {
	ctx, span := startSpan(ctx, "pgstore.MarkReminderSent", "UPDATE")
	defer span.End()

	tag, err := s.pool.Exec(ctx,
		`UPDATE follow_ups SET reminder_sent = TRUE WHERE follow_up_id = $1`,
		followUpID,
	)
	if err != nil {
		return fail(span, &triage.StorageError{Op: "mark reminder sent", Err: err})
	}
	if tag.RowsAffected() == 0 {
		return fail(span, &triage.NotFoundError{Kind: "follow_up", ID: followUpID})
	}
	return nil
}

// ListOpenFollowUps joins unresolved obligations with their owning email,
// due date ascending, insertion order on ties.
func (s *Store) ListOpenFollowUps(ctx context.Context, today time.Time) ([]triage.FollowUpItem, error) {
	ctx, span := startSpan(ctx, "pgstore.ListOpenFollowUps", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT f.follow_up_id, f.email_id, e.sender, e.subject, e.summary,
		        f.follow_up_date, f.reminder_sent
		 FROM follow_ups f
		 JOIN emails e ON e.email_id = f.email_id
		 WHERE NOT f.resolved
		 ORDER BY f.follow_up_date, f.follow_up_id`,
	)
	if err != nil {
		return nil, fail(span, &triage.StorageError{Op: "list open follow-ups", Err: err})
	}
	defer rows.Close()

	var items []triage.FollowUpItem
	for rows.Next() {
		var it triage.FollowUpItem
		if err := rows.Scan(&it.FollowUpID, &it.EmailID, &it.Sender, &it.Subject,
			&it.Summary, &it.FollowUpDate, &it.ReminderSent); err != nil {
			return nil, fail(span, &triage.StorageError{Op: "scan follow-up", Err: err})
		}
		it.DaysUntilDue = triage.DaysUntilDue(it.FollowUpDate, today)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, &triage.StorageError{Op: "iterate follow-ups", Err: err})
	}
	return items, nil
}

// History returns the audit entries for one email, oldest first.
func (s *Store) History(ctx context.Context, emailID int64) ([]triage.AuditEntry, error) {
	ctx, span := startSpan(ctx, "pgstore.History", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT audit_id, email_id, action, performed_at, old_status, new_status, notes
		 FROM audit_log WHERE email_id = $1
		 ORDER BY performed_at, audit_id`,
		emailID,
	)
	if err != nil {
		return nil, fail(span, &triage.StorageError{Op: "query history", Err: err})
	}
	defer rows.Close()

	var entries []triage.AuditEntry
	for rows.Next() {
		var e triage.AuditEntry
		var oldStatus, newStatus string
		if err := rows.Scan(&e.AuditID, &e.EmailID, &e.Action, &e.PerformedAt,
			&oldStatus, &newStatus, &e.Notes); err != nil {
			return nil, fail(span, &triage.StorageError{Op: "scan audit entry", Err: err})
		}
		e.OldStatus = triage.Status(oldStatus)
		e.NewStatus = triage.Status(newStatus)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, &triage.StorageError{Op: "iterate history", Err: err})
	}
	return entries, nil
}

// TodaysEmails returns records received on the same calendar day as day,
// newest first.
func (s *Store) TodaysEmails(ctx context.Context, day time.Time) ([]triage.TodayItem, error) {
	ctx, span := startSpan(ctx, "pgstore.TodaysEmails", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT email_id, sender, subject, category, urgency, summary,
		        suggested_action, status, received_at
		 FROM emails
		 WHERE received_at::date = $1::date
		 ORDER BY received_at DESC`,
		day,
	)
	if err != nil {
		return nil, fail(span, &triage.StorageError{Op: "query today's emails", Err: err})
	}
	defer rows.Close()

	var items []triage.TodayItem
	for rows.Next() {
		var it triage.TodayItem
		var category, action, status string
		if err := rows.Scan(&it.EmailID, &it.Sender, &it.Subject, &category,
			&it.Urgency, &it.Summary, &action, &status, &it.ReceivedAt); err != nil {
			return nil, fail(span, &triage.StorageError{Op: "scan today's email", Err: err})
		}
		it.Category = triage.Category(category)
		it.Action = triage.Action(action)
		it.Status = triage.Status(status)
		it.UrgencyLabel = triage.UrgencyLabel(it.Urgency)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, &triage.StorageError{Op: "iterate today's emails", Err: err})
	}
	return items, nil
}

// PendingEmails returns PENDING records, urgency descending then newest first.
func (s *Store) PendingEmails(ctx context.Context) ([]triage.PendingItem, error) {
	ctx, span := startSpan(ctx, "pgstore.PendingEmails", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT email_id, sender, subject, category, urgency, summary,
		        suggested_action, requires_escalation_contact
		 FROM emails
		 WHERE status = 'PENDING'
		 ORDER BY urgency DESC, received_at DESC`,
	)
	if err != nil {
		return nil, fail(span, &triage.StorageError{Op: "query pending emails", Err: err})
	}
	defer rows.Close()

	var items []triage.PendingItem
	for rows.Next() {
		var it triage.PendingItem
		var category, action string
		if err := rows.Scan(&it.EmailID, &it.Sender, &it.Subject, &category,
			&it.Urgency, &it.Summary, &action, &it.RequiresEscalationContact); err != nil {
			return nil, fail(span, &triage.StorageError{Op: "scan pending email", Err: err})
		}
		it.Category = triage.Category(category)
		it.Action = triage.Action(action)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, &triage.StorageError{Op: "iterate pending emails", Err: err})
	}
	return items, nil
}

// scanEmailRow scans a single row into an EmailRecord.
// Returns (nil, nil) when no row is found.
func scanEmailRow(row pgx.Row) (*triage.EmailRecord, error) {
	var (
		rec          triage.EmailRecord
		category     string
		action       string
		status       string
		entitiesJSON []byte
	)

	err := row.Scan(
		&rec.EmailID, &rec.ThreadID, &rec.Sender, &rec.Subject, &rec.BodyPreview,
		&rec.ReceivedAt, &category, &rec.Urgency, &rec.Summary, &action,
		&rec.DelegateTo, &rec.DraftReply, &rec.FollowUpDate, &entitiesJSON,
		&rec.RequiresEscalationContact, &status, &rec.StatusUpdatedAt, &rec.Notes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, &triage.StorageError{Op: "scan email", Err: err}
	}

	rec.Category = triage.Category(category)
	rec.SuggestedAction = triage.Action(action)
	rec.Status = triage.Status(status)

	if err := json.Unmarshal(entitiesJSON, &rec.KeyEntities); err != nil {
		return nil, &triage.StorageError{Op: "unmarshal key entities", Err: err}
	}
	return &rec, nil
}

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
