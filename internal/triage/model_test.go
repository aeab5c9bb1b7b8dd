package triage

import (
	"testing"
	"time"
)

func TestUrgencyLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		urgency int
		want    string
	}{
		{5, "Critical"},
		{4, "High"},
		{3, "Medium"},
		{2, "Low"},
		{1, "Informational"},
		{0, ""},
		{6, ""},
		{-1, ""},
	}

	for _, tt := range tests {
		if got := UrgencyLabel(tt.urgency); got != tt.want {
			t.Errorf("UrgencyLabel(%d) = %q, want %q", tt.urgency, got, tt.want)
		}
	}
}

func TestDaysUntilDue(t *testing.T) {
	t.Parallel()

	today := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		due  time.Time
		want int
	}{
		{"due today", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), 0},
		{"due today later clock time", time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC), 0},
		{"due tomorrow", time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), 1},
		{"due next week", time.Date(2026, 3, 17, 9, 0, 0, 0, time.UTC), 7},
		{"overdue by one day", time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC), -1},
		{"overdue by a month", time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC), -28},
		{"across month boundary", time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC), 23},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := DaysUntilDue(tt.due, today); got != tt.want {
				t.Errorf("DaysUntilDue(%v, %v) = %d, want %d", tt.due, today, got, tt.want)
			}
		})
	}
}

func TestStatusValid(t *testing.T) {
	t.Parallel()

	for _, s := range []Status{StatusPending, StatusApproved, StatusSent, StatusArchived, StatusDelegated} {
		if !s.Valid() {
			t.Errorf("Status(%q).Valid() = false, want true", s)
		}
	}
	for _, s := range []Status{"", "pending", "DONE", "PENDING "} {
		if s.Valid() {
			t.Errorf("Status(%q).Valid() = true, want false", s)
		}
	}
}

func TestCategoryValid(t *testing.T) {
	t.Parallel()

	all := []Category{
		CategoryVendorSecurity, CategoryTeamManagement, CategoryEscalation,
		CategoryMeetingRequest, CategoryFYIOnly, CategoryNewsletter,
		CategoryAdmin, CategoryLegal, CategoryProcurement,
		CategoryFollowUpNeeded, CategorySpam,
	}
	if len(all) != 11 {
		t.Fatalf("category set size = %d, want 11", len(all))
	}
	for _, c := range all {
		if !c.Valid() {
			t.Errorf("Category(%q).Valid() = false, want true", c)
		}
	}
	for _, c := range []Category{"", "vendor_security", "OTHER"} {
		if c.Valid() {
			t.Errorf("Category(%q).Valid() = true, want false", c)
		}
	}
}

func TestActionValid(t *testing.T) {
	t.Parallel()

	for _, a := range []Action{ActionReplyNow, ActionDelegate, ActionArchive, ActionSchedule, ActionFollowUp, ActionDelete} {
		if !a.Valid() {
			t.Errorf("Action(%q).Valid() = false, want true", a)
		}
	}
	for _, a := range []Action{"", "reply_now", "IGNORE"} {
		if a.Valid() {
			t.Errorf("Action(%q).Valid() = true, want false", a)
		}
	}
}
