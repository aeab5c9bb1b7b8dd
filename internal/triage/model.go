package triage

import "time"

// Status tracks where an email is in its workflow lifecycle.
type Status string

const (
	// StatusPending means ingested, awaiting a decision
	StatusPending Status = "PENDING"

	// StatusApproved means the suggested action (usually a draft reply) was approved
	StatusApproved Status = "APPROVED"

	// StatusSent means the approved reply went out
	StatusSent Status = "SENT"

	// StatusArchived means no further action; terminal by convention
	StatusArchived Status = "ARCHIVED"

	// StatusDelegated means handed off to a team member
	StatusDelegated Status = "DELEGATED"
)

// Category is the classification bucket assigned by the upstream classifier.
type Category string

const (
	CategoryVendorSecurity Category = "VENDOR_SECURITY"
	CategoryTeamManagement Category = "TEAM_MANAGEMENT"
	CategoryEscalation     Category = "ESCALATION"
	CategoryMeetingRequest Category = "MEETING_REQUEST"
	CategoryFYIOnly        Category = "FYI_ONLY"
	CategoryNewsletter     Category = "NEWSLETTER"
	CategoryAdmin          Category = "ADMIN"
	CategoryLegal          Category = "LEGAL"
	CategoryProcurement    Category = "PROCUREMENT"
	CategoryFollowUpNeeded Category = "FOLLOW_UP_NEEDED"
	CategorySpam           Category = "SPAM"
)

// Action is the handling the classifier suggests for an email.
type Action string

const (
	ActionReplyNow Action = "REPLY_NOW"
	ActionDelegate Action = "DELEGATE"
	ActionArchive  Action = "ARCHIVE"
	ActionSchedule Action = "SCHEDULE"
	ActionFollowUp Action = "FOLLOW_UP"
	ActionDelete   Action = "DELETE"
)

var validStatuses = map[Status]bool{
	StatusPending:   true,
	StatusApproved:  true,
	StatusSent:      true,
	StatusArchived:  true,
	StatusDelegated: true,
}

var validCategories = map[Category]bool{
	CategoryVendorSecurity: true,
	CategoryTeamManagement: true,
	CategoryEscalation:     true,
	CategoryMeetingRequest: true,
	CategoryFYIOnly:        true,
	CategoryNewsletter:     true,
	CategoryAdmin:          true,
	CategoryLegal:          true,
	CategoryProcurement:    true,
	CategoryFollowUpNeeded: true,
	CategorySpam:           true,
}

var validActions = map[Action]bool{
	ActionReplyNow: true,
	ActionDelegate: true,
	ActionArchive:  true,
	ActionSchedule: true,
	ActionFollowUp: true,
	ActionDelete:   true,
}

// Valid reports whether s is a member of the workflow status set.
func (s Status) Valid() bool { return validStatuses[s] }

// Valid reports whether c is a member of the category set.
func (c Category) Valid() bool { return validCategories[c] }

// Valid reports whether a is a member of the suggested-action set.
func (a Action) Valid() bool { return validActions[a] }

// EmailRecord is one triaged message: source fields from the mailbox,
// classification fields written once at ingestion, and mutable workflow state.
type EmailRecord struct {
	EmailID     int64     `json:"email_id"`
	ThreadID    string    `json:"thread_id"`
	Sender      string    `json:"sender"`
	Subject     string    `json:"subject"`
	BodyPreview string    `json:"body_preview"`
	ReceivedAt  time.Time `json:"received_at"`

	Category                  Category   `json:"category"`
	Urgency                   int        `json:"urgency"`
	Summary                   string     `json:"summary"`
	SuggestedAction           Action     `json:"suggested_action"`
	DelegateTo                string     `json:"delegate_to,omitempty"`
	DraftReply                string     `json:"draft_reply,omitempty"`
	FollowUpDate              *time.Time `json:"follow_up_date,omitempty"`
	KeyEntities               []string   `json:"key_entities,omitempty"`
	RequiresEscalationContact bool       `json:"requires_escalation_contact"`

	Status          Status    `json:"status"`
	StatusUpdatedAt time.Time `json:"status_updated_at"`
	Notes           string    `json:"notes,omitempty"`
}

// FollowUpObligation is a scheduled check-in tied to one EmailRecord.
// An email may accumulate more than one obligation across re-ingestions;
// only unresolved ones drive the open-follow-ups view.
type FollowUpObligation struct {
	FollowUpID   int64      `json:"follow_up_id"`
	EmailID      int64      `json:"email_id"`
	FollowUpDate time.Time  `json:"follow_up_date"`
	ReminderSent bool       `json:"reminder_sent"`
	Resolved     bool       `json:"resolved"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
	Notes        string     `json:"notes,omitempty"`
}

// AuditEntry is one immutable record of a status transition.
type AuditEntry struct {
	AuditID     int64     `json:"audit_id"`
	EmailID     int64     `json:"email_id"`
	Action      string    `json:"action"`
	PerformedAt time.Time `json:"performed_at"`
	OldStatus   Status    `json:"old_status"`
	NewStatus   Status    `json:"new_status"`
	Notes       string    `json:"notes,omitempty"`
}

// AuditActionStatusChange is the fixed tag stamped on transition audit entries.
const AuditActionStatusChange = "STATUS_CHANGE"

// TodayItem is a dashboard projection of one email received today.
type TodayItem struct {
	EmailID      int64     `json:"email_id"`
	Sender       string    `json:"sender"`
	Subject      string    `json:"subject"`
	Category     Category  `json:"category"`
	Urgency      int       `json:"urgency"`
	UrgencyLabel string    `json:"urgency_label"`
	Summary      string    `json:"summary"`
	Action       Action    `json:"suggested_action"`
	Status       Status    `json:"status"`
	ReceivedAt   time.Time `json:"received_at"`
}

// FollowUpItem is a dashboard projection of one open obligation joined
// with its owning email. DaysUntilDue is negative for overdue items.
type FollowUpItem struct {
	FollowUpID   int64     `json:"follow_up_id"`
	EmailID      int64     `json:"email_id"`
	Sender       string    `json:"sender"`
	Subject      string    `json:"subject"`
	Summary      string    `json:"summary"`
	FollowUpDate time.Time `json:"follow_up_date"`
	ReminderSent bool      `json:"reminder_sent"`
	DaysUntilDue int       `json:"days_until_due"`
}

// PendingItem is the triage-queue projection of one email awaiting a decision.
type PendingItem struct {
	EmailID                   int64    `json:"email_id"`
	Sender                    string   `json:"sender"`
	Subject                   string   `json:"subject"`
	Category                  Category `json:"category"`
	Urgency                   int      `json:"urgency"`
	Summary                   string   `json:"summary"`
	Action                    Action   `json:"suggested_action"`
	RequiresEscalationContact bool     `json:"requires_escalation_contact"`
}

// UrgencyLabel maps an urgency score to its display label. Computed at query
// time, never persisted. Scores outside [1,5] cannot reach storage.
func UrgencyLabel(urgency int) string {
	switch urgency {
	case 5:
		return "Critical"
	case 4:
		return "High"
	case 3:
		return "Medium"
	case 2:
		return "Low"
	case 1:
		return "Informational"
	}
	return ""
}

// DaysUntilDue computes the whole-day distance from today to due by calendar
// date in UTC. Negative means overdue.
func DaysUntilDue(due, today time.Time) int {
	d := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	return int(d.Sub(t) / (24 * time.Hour))
}
