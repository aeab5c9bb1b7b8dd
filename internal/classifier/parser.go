package classifier

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/GDLCMS/ARIA-AI-Agent/internal/triage"
)

// Parsed agent reports arrive as plain text with one EMAIL_START/EMAIL_END
// block per message, each block carrying FIELD: value lines.

var (
	blockRe   = regexp.MustCompile(`(?s)EMAIL_START(.*?)EMAIL_END`)
	urlRe     = regexp.MustCompile(`\(https?://\S+\)`)
	bracketRe = regexp.MustCompile(`\[([^\]]+)\]`)
)

// AgentEmail is one email extracted from an agent report block: the source
// fields plus the classification the agent already performed.
type AgentEmail struct {
	Email  Email
	Result Result
}

// ParseAgentBlocks extracts classified emails from an agent triage report.
// Blocks without recognizable fields fall back to safe defaults (ADMIN,
// urgency 2, REPLY_NOW) rather than being dropped.
func ParseAgentBlocks(raw string, now time.Time) []AgentEmail {
	var emails []AgentEmail

	for _, m := range blockRe.FindAllStringSubmatch(raw, -1) {
		block := strings.TrimSpace(m[1])

		subject := cleanMarkup(fieldOr(block, "SUBJECT", "No Subject"))
		sender := cleanMarkup(fieldOr(block, "FROM", "Unknown"))

		urgency := 2
		if v := field(block, "URGENCY"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				urgency = n
			}
		}

		var followUp *time.Time
		if v := field(block, "FOLLOW_UP_DATE"); v != "" {
			if d, err := time.Parse("2006-01-02", v); err == nil {
				followUp = &d
			}
		}

		preview := block
		if len(preview) > 500 {
			preview = preview[:500]
		}

		emails = append(emails, AgentEmail{
			Email: Email{
				Sender:     sender,
				Subject:    subject,
				Body:       preview,
				ThreadID:   "ARIA-" + ulid.Make().String(),
				ReceivedAt: now,
			},
			Result: Result{
				Category:                  category(fieldOr(block, "CATEGORY", "ADMIN")),
				Urgency:                   urgency,
				Summary:                   field(block, "SUMMARY"),
				SuggestedAction:           action(fieldOr(block, "ACTION", "REPLY_NOW")),
				DelegateTo:                field(block, "DELEGATE_TO"),
				DraftReply:                field(block, "DRAFT_REPLY"),
				FollowUpDate:              followUp,
				RequiresEscalationContact: strings.EqualFold(field(block, "REQUIRES_ESCALATION"), "YES"),
			},
		})
	}

	return emails
}

// field extracts a FIELD: value from a block. Values run until the next
// FIELD: line or end of block. A literal NONE means absent.
func field(block, name string) string {
	re := regexp.MustCompile(`(?s)` + name + `:\s*(.+?)(?:\n[A-Z_]+:|$)`)
	m := re.FindStringSubmatch(block)
	if m == nil {
		return ""
	}
	val := strings.TrimSpace(m[1])
	if strings.EqualFold(val, "NONE") {
		return ""
	}
	return val
}

func fieldOr(block, name, fallback string) string {
	if v := field(block, name); v != "" {
		return v
	}
	return fallback
}

func category(v string) triage.Category {
	return triage.Category(strings.ToUpper(strings.TrimSpace(v)))
}

func action(v string) triage.Action {
	return triage.Action(strings.ToUpper(strings.TrimSpace(v)))
}

// cleanMarkup strips trailing markdown URLs and unwraps [bracketed] link text
// that mail gateways add to subjects and sender names.
func cleanMarkup(s string) string {
	s = urlRe.ReplaceAllString(s, "")
	s = bracketRe.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}
