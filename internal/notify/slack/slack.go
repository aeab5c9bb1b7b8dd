// Package slack posts escalation notices for high-urgency emails to a Slack
// incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/GDLCMS/ARIA-AI-Agent/internal/triage"
)

const (
	maxSummaryLen = 3000
	httpTimeout   = 10 * time.Second
)

// Notifier sends escalation notices to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, Escalate is a
// no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// Escalate posts an escalation notice for the email to the configured
// webhook. If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Escalate(ctx context.Context, rec *triage.EmailRecord) error {
	if n.webhookURL == "" {
		return nil
	}

	msg := buildMessage(rec)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(rec *triage.EmailRecord) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(rec),
			{"type": "divider"},
			fieldsBlock(rec),
			{"type": "divider"},
			summaryBlock(rec),
			{"type": "divider"},
			contextBlock(rec),
		},
	}
}

func headerBlock(rec *triage.EmailRecord) map[string]any {
	emoji := urgencyEmoji(rec.Urgency)
	text := fmt.Sprintf("%s Escalation: %s", emoji, rec.Subject)

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(rec *triage.EmailRecord) map[string]any {
	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*From:* %s", rec.Sender),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Category:* %s", rec.Category),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Urgency:* %s (%d)", triage.UrgencyLabel(rec.Urgency), rec.Urgency),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Action:* %s", rec.SuggestedAction),
		},
	}
	if rec.DelegateTo != "" {
		fields = append(fields, map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Delegate to:* %s", rec.DelegateTo),
		})
	}
	if rec.FollowUpDate != nil {
		fields = append(fields, map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Follow up:* %s", rec.FollowUpDate.Format("2006-01-02")),
		})
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func summaryBlock(rec *triage.EmailRecord) map[string]any {
	text := truncate(rec.Summary, maxSummaryLen)
	if text == "" {
		text = "_No summary available._"
	}
	if len(rec.KeyEntities) > 0 {
		text += fmt.Sprintf("\n\n*Entities:* %s", strings.Join(rec.KeyEntities, ", "))
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Summary*\n\n%s", text),
		},
	}
}

func contextBlock(rec *triage.EmailRecord) map[string]any {
	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("aria • email %d • received %s",
				rec.EmailID, rec.ReceivedAt.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func urgencyEmoji(urgency int) string {
	switch {
	case urgency >= 5:
		return "\U0001f534" // red circle
	case urgency == 4:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
