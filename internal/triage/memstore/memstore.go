// Package memstore provides an in-memory implementation of triage.Store.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/GDLCMS/ARIA-AI-Agent/internal/triage"
)

// Store holds triage state in memory. Suitable for dev/testing. One mutex
// serializes mutating operations, giving the same all-or-nothing and
// no-lost-update guarantees the Postgres store gets from transactions.
type Store struct {
	mu sync.RWMutex

	nextEmailID    int64
	nextFollowUpID int64
	nextAuditID    int64

	emails        map[int64]*triage.EmailRecord
	followUps     map[int64]*triage.FollowUpObligation
	followUpOrder []int64 // insertion order, the ListOpenFollowUps tie-break
	audits        []triage.AuditEntry
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		emails:    make(map[int64]*triage.EmailRecord),
		followUps: make(map[int64]*triage.FollowUpObligation),
	}
}

// IngestEmail stores a copy of the record and, when followUpDate is set, its
// obligation. Both writes happen under one lock hold.
func (s *Store) IngestEmail(_ context.Context, rec *triage.EmailRecord, followUpDate *time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextEmailID++
	id := s.nextEmailID

	cp := *rec
	cp.EmailID = id
	s.emails[id] = &cp

	if followUpDate != nil {
		s.insertFollowUpLocked(id, *followUpDate)
	}
	return id, nil
}

// GetEmail retrieves a record by ID. Returns a copy.
func (s *Store) GetEmail(_ context.Context, emailID int64) (*triage.EmailRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.emails[emailID]
	if !ok {
		return nil, false, nil
	}
	cp := *rec
	return &cp, true, nil
}

// FindBySenderSubject returns the ID of an existing record with the same
// sender and subject, lowest ID first for determinism.
func (s *Store) FindBySenderSubject(_ context.Context, sender, subject string) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found int64
	for id, rec := range s.emails {
		if rec.Sender == sender && rec.Subject == subject && (found == 0 || id < found) {
			found = id
		}
	}
	return found, found != 0, nil
}

// TransitionStatus updates the workflow fields and appends one audit entry
// under a single lock hold.
func (s *Store) TransitionStatus(_ context.Context, emailID int64, newStatus triage.Status, notes *string, now time.Time) (*triage.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.emails[emailID]
	if !ok {
		return nil, &triage.NotFoundError{Kind: "email", ID: emailID}
	}

	oldStatus := rec.Status
	rec.Status = newStatus
	rec.StatusUpdatedAt = now
	if notes != nil {
		rec.Notes = *notes
	}

	s.nextAuditID++
	entry := triage.AuditEntry{
		AuditID:     s.nextAuditID,
		EmailID:     emailID,
		Action:      triage.AuditActionStatusChange,
		PerformedAt: now,
		OldStatus:   oldStatus,
		NewStatus:   newStatus,
	}
	if notes != nil {
		entry.Notes = *notes
	}
	s.audits = append(s.audits, entry)

	cp := entry
	return &cp, nil
}

// CreateObligation inserts a follow-up for an existing email.
func (s *Store) CreateObligation(_ context.Context, emailID int64, due time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.emails[emailID]; !ok {
		return 0, &triage.ReferentialError{EmailID: emailID}
	}
	return s.insertFollowUpLocked(emailID, due), nil
}

// ResolveFollowUp marks an obligation resolved. Resolving twice is a no-op.
func (s *Store) ResolveFollowUp(_ context.Context, followUpID int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fu, ok := s.followUps[followUpID]
	if !ok {
		return &triage.NotFoundError{Kind: "follow_up", ID: followUpID}
	}
	if fu.Resolved {
		return nil
	}
	fu.Resolved = true
	fu.ResolvedAt = &now
	return nil
}

// MarkReminderSent flags an obligation as reminded.
func (s *Store) MarkReminderSent(_ context.Context, followUpID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fu, ok := s.followUps[followUpID]
	if !ok {
		return &triage.NotFoundError{Kind: "follow_up", ID: followUpID}
	}
	fu.ReminderSent = true
	return nil
}

// ListOpenFollowUps returns unresolved obligations joined with their email,
// due date ascending, insertion order on ties.
func (s *Store) ListOpenFollowUps(_ context.Context, today time.Time) ([]triage.FollowUpItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []triage.FollowUpItem
	for _, id := range s.followUpOrder {
		fu := s.followUps[id]
		if fu.Resolved {
			continue
		}
		rec := s.emails[fu.EmailID]
		items = append(items, triage.FollowUpItem{
			FollowUpID:   fu.FollowUpID,
			EmailID:      fu.EmailID,
			Sender:       rec.Sender,
			Subject:      rec.Subject,
			Summary:      rec.Summary,
			FollowUpDate: fu.FollowUpDate,
			ReminderSent: fu.ReminderSent,
			DaysUntilDue: triage.DaysUntilDue(fu.FollowUpDate, today),
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].FollowUpDate.Before(items[j].FollowUpDate)
	})
	return items, nil
}

// History returns audit entries for one email, oldest first.
func (s *Store) History(_ context.Context, emailID int64) ([]triage.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []triage.AuditEntry
	for _, e := range s.audits {
		if e.EmailID == emailID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// TodaysEmails returns records received on the same UTC calendar day as day,
// newest first.
func (s *Store) TodaysEmails(_ context.Context, day time.Time) ([]triage.TodayItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	y, m, d := day.UTC().Date()
	var items []triage.TodayItem
	for _, rec := range s.emails {
		ry, rm, rd := rec.ReceivedAt.UTC().Date()
		if ry != y || rm != m || rd != d {
			continue
		}
		items = append(items, triage.TodayItem{
			EmailID:      rec.EmailID,
			Sender:       rec.Sender,
			Subject:      rec.Subject,
			Category:     rec.Category,
			Urgency:      rec.Urgency,
			UrgencyLabel: triage.UrgencyLabel(rec.Urgency),
			Summary:      rec.Summary,
			Action:       rec.SuggestedAction,
			Status:       rec.Status,
			ReceivedAt:   rec.ReceivedAt,
		})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].ReceivedAt.After(items[j].ReceivedAt)
	})
	return items, nil
}

// PendingEmails returns PENDING records, urgency descending then newest first.
func (s *Store) PendingEmails(_ context.Context) ([]triage.PendingItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type pending struct {
		item     triage.PendingItem
		received time.Time
	}
	var rows []pending
	for _, rec := range s.emails {
		if rec.Status != triage.StatusPending {
			continue
		}
		rows = append(rows, pending{
			item: triage.PendingItem{
				EmailID:                   rec.EmailID,
				Sender:                    rec.Sender,
				Subject:                   rec.Subject,
				Category:                  rec.Category,
				Urgency:                   rec.Urgency,
				Summary:                   rec.Summary,
				Action:                    rec.SuggestedAction,
				RequiresEscalationContact: rec.RequiresEscalationContact,
			},
			received: rec.ReceivedAt,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].item.Urgency != rows[j].item.Urgency {
			return rows[i].item.Urgency > rows[j].item.Urgency
		}
		return rows[i].received.After(rows[j].received)
	})
	items := make([]triage.PendingItem, len(rows))
	for i, r := range rows {
		items[i] = r.item
	}
	return items, nil
}

func (s *Store) insertFollowUpLocked(emailID int64, due time.Time) int64 {
	s.nextFollowUpID++
	id := s.nextFollowUpID
	s.followUps[id] = &triage.FollowUpObligation{
		FollowUpID:   id,
		EmailID:      emailID,
		FollowUpDate: due,
	}
	s.followUpOrder = append(s.followUpOrder, id)
	return id
}
