// Package classifier provides email classification for the triage pipeline.
// It defines the Classifier interface consumed by the API layer, a
// deterministic keyword-rule engine usable offline, and a parser for
// agent-produced triage reports. The Claude-backed classifier lives in the
// claude subpackage.
package classifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/GDLCMS/ARIA-AI-Agent/internal/triage"
)

// Email is a raw inbound message prior to classification.
type Email struct {
	Sender     string
	Subject    string
	Body       string
	ThreadID   string
	ReceivedAt time.Time
}

// Result is the fixed classification shape every classifier produces.
type Result struct {
	Category                  triage.Category
	Urgency                   int
	Summary                   string
	SuggestedAction           triage.Action
	DelegateTo                string
	DraftReply                string
	FollowUpDate              *time.Time
	KeyEntities               []string
	RequiresEscalationContact bool
}

// Classifier turns a raw email into a classification result.
type Classifier interface {
	Classify(ctx context.Context, email *Email) (*Result, error)
}

// categoryRule pairs a category with the keywords that select it. Rules are
// evaluated in order; the first match wins.
type categoryRule struct {
	category triage.Category
	keywords []string
}

var categoryRules = []categoryRule{
	{triage.CategoryVendorSecurity, []string{
		"security annex", "vendor", "supplier", "tprm", "third party",
		"risk assessment", "security review", "questionnaire", "saq",
		"penetration test", "pentest", "iso 27001", "soc2", "soc 2",
	}},
	{triage.CategoryEscalation, []string{
		"escalat", "urgent", "critical", "breach", "incident",
		"violation", "non-complian", "overdue", "immediate",
	}},
	{triage.CategoryMeetingRequest, []string{
		"meeting", "call", "invite", "calendar", "schedule",
		"catch up", "sync", "teams call", "zoom",
	}},
	{triage.CategoryLegal, []string{
		"contract", "legal", "clause", "gdpr", "privacy",
		"data protection", "dpa", "agreement", "terms",
	}},
	{triage.CategoryProcurement, []string{
		"purchase", "procurement", "po ", "invoice", "budget",
		"cost", "payment", "sourcing",
	}},
	{triage.CategoryTeamManagement, []string{
		"team", "my report", "direct report", "performance",
		"leave", "vacation", "pto", "absence",
	}},
	{triage.CategoryNewsletter, []string{
		"unsubscribe", "newsletter", "digest", "weekly update",
		"monthly report", "bulletin", "no-reply", "noreply",
	}},
	{triage.CategoryFollowUpNeeded, []string{
		"follow up", "following up", "reminder", "pending",
		"still waiting", "no response", "chasing",
	}},
	{triage.CategorySpam, []string{
		"congratulations you won", "click here", "limited offer",
		"free gift", "act now", "verify your account",
	}},
}

type urgencyRule struct {
	urgency  int
	keywords []string
}

var urgencyRules = []urgencyRule{
	{5, []string{
		"breach", "incident", "critical", "immediate action",
		"escalat", "urgent", "asap", "today",
	}},
	{4, []string{
		"overdue", "deadline", "by end of day", "eod",
		"non-complian", "violation", "pending approval",
	}},
	{3, []string{
		"follow up", "reminder", "please review",
		"your input", "feedback needed",
	}},
	{2, []string{
		"fyi", "for your information", "update",
		"newsletter", "digest",
	}},
	{1, []string{
		"unsubscribe", "no-reply", "automatic", "noreply",
	}},
}

// knownEntities are the names the rule engine can spot in email text.
var knownEntities = []string{
	"TPRM", "Security Annex", "GDPR", "ISO 27001", "SOC2",
}

// Rules is the keyword-rule classification engine. It needs no network and
// no credentials; the Claude classifier replaces it when an API key is set.
type Rules struct {
	owner     string // name used to sign draft replies
	signature string // role line appended under the owner's name
}

// NewRules creates a rule engine that signs draft replies as owner with the
// given signature line.
func NewRules(owner, signature string) *Rules {
	return &Rules{owner: owner, signature: signature}
}

// Classify applies the keyword rule tables to the email. It never fails.
func (r *Rules) Classify(_ context.Context, email *Email) (*Result, error) {
	text := strings.ToLower(email.Subject + " " + email.Body)

	category := classifyCategory(text)
	urgency := classifyUrgency(text)

	return &Result{
		Category:                  category,
		Urgency:                   urgency,
		Summary:                   summarize(email),
		SuggestedAction:           suggestAction(category, urgency),
		DraftReply:                r.draftReply(category, urgency, email),
		KeyEntities:               extractEntities(email.Subject + " " + email.Body),
		RequiresEscalationContact: requiresEscalation(category, urgency),
	}, nil
}

func classifyCategory(text string) triage.Category {
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.category
			}
		}
	}
	return triage.CategoryAdmin
}

func classifyUrgency(text string) int {
	for _, rule := range urgencyRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.urgency
			}
		}
	}
	return 2
}

func suggestAction(category triage.Category, urgency int) triage.Action {
	switch {
	case urgency >= 4:
		return triage.ActionReplyNow
	case category == triage.CategoryNewsletter || category == triage.CategorySpam:
		return triage.ActionArchive
	case category == triage.CategoryMeetingRequest:
		return triage.ActionSchedule
	case category == triage.CategoryFollowUpNeeded:
		return triage.ActionFollowUp
	case category == triage.CategoryTeamManagement:
		return triage.ActionDelegate
	}
	return triage.ActionReplyNow
}

func requiresEscalation(category triage.Category, urgency int) bool {
	if urgency >= 4 {
		return true
	}
	switch category {
	case triage.CategoryEscalation, triage.CategoryVendorSecurity, triage.CategoryLegal:
		return true
	}
	return false
}

func summarize(email *Email) string {
	body := email.Body
	if len(body) > 150 {
		body = body[:150]
	}
	return fmt.Sprintf("Email from %s regarding '%s'. %s...", email.Sender, email.Subject, body)
}

func (r *Rules) draftReply(category triage.Category, urgency int, email *Email) string {
	name := senderName(email.Sender)
	signoff := fmt.Sprintf("Best regards,\n%s\n%s", r.owner, r.signature)

	switch {
	case category == triage.CategoryNewsletter || category == triage.CategorySpam:
		return ""
	case category == triage.CategoryMeetingRequest:
		return fmt.Sprintf("Hi %s,\n\nThank you for reaching out. I'd be happy to connect. "+
			"Please feel free to send a calendar invite at your convenience, or let me know "+
			"your preferred time slots.\n\nBest regards,\n%s", name, r.owner)
	case category == triage.CategoryVendorSecurity:
		return fmt.Sprintf("Hi %s,\n\nThank you for your message regarding %s. "+
			"I will review the details and get back to you with next steps within "+
			"2 business days.\n\n%s", name, email.Subject, signoff)
	case category == triage.CategoryEscalation || urgency >= 4:
		return fmt.Sprintf("Hi %s,\n\nThank you for flagging this. I am treating this as "+
			"a priority and will respond with a full update shortly.\n\n%s", name, signoff)
	}
	return fmt.Sprintf("Hi %s,\n\nThank you for your email. I will review and come back "+
		"to you shortly.\n\n%s", name, signoff)
}

// senderName derives a salutation from the address local part:
// "jane.doe@example.com" -> "Jane Doe".
func senderName(sender string) string {
	local := sender
	if i := strings.Index(local, "@"); i >= 0 {
		local = local[:i]
	}
	local = strings.ReplaceAll(local, ".", " ")
	return strings.Title(local) //nolint:staticcheck // ASCII names only
}

func extractEntities(text string) []string {
	lower := strings.ToLower(text)
	var entities []string
	for _, e := range knownEntities {
		if strings.Contains(lower, strings.ToLower(e)) {
			entities = append(entities, e)
		}
	}
	return entities
}
