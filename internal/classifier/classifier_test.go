package classifier

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/GDLCMS/ARIA-AI-Agent/internal/triage"
)

func newTestRules() *Rules {
	return NewRules("Jordan Smith", "Security & Compliance")
}

func classify(t *testing.T, subject, body string) *Result {
	t.Helper()
	res, err := newTestRules().Classify(context.Background(), &Email{
		Sender:     "someone@example.com",
		Subject:    subject,
		Body:       body,
		ReceivedAt: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	return res
}

func TestClassify_Categories(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		subject string
		body    string
		want    triage.Category
	}{
		{"vendor security", "Pending Security Annex", "please complete the vendor questionnaire", triage.CategoryVendorSecurity},
		{"escalation", "URGENT: compliance violation", "we found a non-compliance issue", triage.CategoryEscalation},
		{"meeting", "Catch up next week?", "can we schedule a zoom call", triage.CategoryMeetingRequest},
		{"legal", "Updated DPA for review", "the data protection agreement needs your signature", triage.CategoryLegal},
		{"procurement", "Invoice for March", "please approve the payment", triage.CategoryProcurement},
		{"team", "PTO request", "I would like to take vacation next month", triage.CategoryTeamManagement},
		{"newsletter", "Weekly update", "click unsubscribe to stop receiving this digest", triage.CategoryNewsletter},
		{"follow up", "Still waiting on your reply", "just following up on my last note", triage.CategoryFollowUpNeeded},
		{"spam", "Congratulations you won!", "click here for your free gift", triage.CategorySpam},
		{"default admin", "Office desk move", "your desk is moving to floor 3", triage.CategoryAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := classify(t, tt.subject, tt.body)
			if res.Category != tt.want {
				t.Errorf("category = %s, want %s", res.Category, tt.want)
			}
		})
	}
}

func TestClassify_CategoryOrderFirstMatchWins(t *testing.T) {
	t.Parallel()

	// matches both the vendor-security and escalation tables; the
	// vendor-security rule is evaluated first
	res := classify(t, "URGENT vendor breach", "the supplier reported an incident")
	if res.Category != triage.CategoryVendorSecurity {
		t.Errorf("category = %s, want %s", res.Category, triage.CategoryVendorSecurity)
	}
}

func TestClassify_Urgency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		subject string
		body    string
		want    int
	}{
		{"breach is 5", "Data breach detected", "we detected a breach", 5},
		{"overdue is 4", "Questionnaire overdue", "the deadline passed", 4},
		{"review is 3", "Please review", "your input would be appreciated", 3},
		{"fyi is 2", "FYI", "for your information only", 2},
		{"noreply is 1", "Automatic notification", "sent from a no-reply address", 1},
		{"default is 2", "Hello", "plain message with none of the key words", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := classify(t, tt.subject, tt.body)
			if res.Urgency != tt.want {
				t.Errorf("urgency = %d, want %d", res.Urgency, tt.want)
			}
		})
	}
}

func TestClassify_SuggestedAction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		subject string
		body    string
		want    triage.Action
	}{
		{"high urgency replies now", "URGENT breach", "critical incident", triage.ActionReplyNow},
		{"newsletter archives", "Monthly digest", "unsubscribe below", triage.ActionArchive},
		{"meeting schedules", "Quick sync", "send me a calendar invite", triage.ActionSchedule},
		{"follow up follows up", "Still waiting", "chasing my earlier note", triage.ActionFollowUp},
		{"team delegates", "Leave request", "my direct report asked about absence", triage.ActionDelegate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := classify(t, tt.subject, tt.body)
			if res.SuggestedAction != tt.want {
				t.Errorf("action = %s, want %s", res.SuggestedAction, tt.want)
			}
		})
	}
}

func TestClassify_Escalation(t *testing.T) {
	t.Parallel()

	if res := classify(t, "Vendor questionnaire", "routine vendor check"); !res.RequiresEscalationContact {
		t.Error("vendor security should flag escalation contact")
	}
	if res := classify(t, "Data breach", "critical incident"); !res.RequiresEscalationContact {
		t.Error("urgency >= 4 should flag escalation contact")
	}
	if res := classify(t, "Monthly digest", "unsubscribe"); res.RequiresEscalationContact {
		t.Error("newsletter should not flag escalation contact")
	}
}

func TestClassify_DraftReply(t *testing.T) {
	t.Parallel()

	res, err := newTestRules().Classify(context.Background(), &Email{
		Sender:     "jane.doe@example.com",
		Subject:    "Vendor security review",
		Body:       "please review the attached questionnaire",
		ReceivedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if !strings.Contains(res.DraftReply, "Hi Jane Doe,") {
		t.Errorf("draft reply = %q, want salutation for Jane Doe", res.DraftReply)
	}
	if !strings.Contains(res.DraftReply, "Jordan Smith") {
		t.Errorf("draft reply = %q, want owner signature", res.DraftReply)
	}

	// no reply drafted for mail that gets archived
	if res := classify(t, "Monthly digest", "unsubscribe below"); res.DraftReply != "" {
		t.Errorf("newsletter draft reply = %q, want empty", res.DraftReply)
	}
}

func TestClassify_KeyEntities(t *testing.T) {
	t.Parallel()

	res := classify(t, "TPRM review", "the security annex references gdpr and iso 27001")
	want := map[string]bool{"TPRM": true, "Security Annex": true, "GDPR": true, "ISO 27001": true}
	if len(res.KeyEntities) != len(want) {
		t.Fatalf("entities = %v, want %d entries", res.KeyEntities, len(want))
	}
	for _, e := range res.KeyEntities {
		if !want[e] {
			t.Errorf("unexpected entity %q", e)
		}
	}
}

func TestSenderName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		sender string
		want   string
	}{
		{"jane.doe@example.com", "Jane Doe"},
		{"bob@example.com", "Bob"},
		{"no-at-sign", "No-At-Sign"},
	}
	for _, tt := range tests {
		if got := senderName(tt.sender); got != tt.want {
			t.Errorf("senderName(%q) = %q, want %q", tt.sender, got, tt.want)
		}
	}
}

func TestSummarize_TruncatesBody(t *testing.T) {
	t.Parallel()

	res := classify(t, "Long email", strings.Repeat("z", 500))
	if len(res.Summary) > 250 {
		t.Errorf("summary length = %d, want truncated body", len(res.Summary))
	}
	if !strings.Contains(res.Summary, "Long email") {
		t.Errorf("summary = %q, want to mention the subject", res.Summary)
	}
}
