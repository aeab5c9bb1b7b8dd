// Package claude implements classifier.Classifier on the Anthropic API.
package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/GDLCMS/ARIA-AI-Agent/internal/classifier"
	"github.com/GDLCMS/ARIA-AI-Agent/internal/triage"
)

const (
	responseTokens = 1500

	systemPrompt = `You are ARIA, an expert AI email analyst for a security and
compliance lead who manages vendor security assessments, third-party risk
escalations, and a distributed team, and who receives 80+ emails daily.

Analyze each email deeply - understand context, intent, urgency.
Be intelligent, not keyword-based. A polite email can still be a 5
if it contains a breach. URGENT in subject might be a 2 if it's sales.

Respond ONLY with raw valid JSON - no markdown, no preamble:

{
"category": "VENDOR_SECURITY|TEAM_MANAGEMENT|ESCALATION|MEETING_REQUEST|FYI_ONLY|NEWSLETTER|ADMIN|LEGAL|PROCUREMENT|FOLLOW_UP_NEEDED|SPAM",
"urgency": 1-5,
"summary": "2 sentences max - what is this and why does it matter",
"suggested_action": "REPLY_NOW|DELEGATE|ARCHIVE|SCHEDULE|FOLLOW_UP|DELETE",
"delegate_to": "name or role or null",
"draft_reply": "complete reply in the owner's voice, or null",
"follow_up_date": "YYYY-MM-DD or null",
"key_entities": ["vendor names", "people", "systems", "topics"],
"requires_escalation_contact": true or false,
"reasoning": "1 sentence on why this urgency and action"
}

Urgency:
5 = breach, incident, critical, immediate legal/compliance risk
4 = overdue, today deadline, escalation, non-compliance
3 = needs review, input, vendor follow-up, team decision
2 = FYI, informational, low priority
1 = newsletters, auto-notifications, digests`
)

// Client classifies emails with the Anthropic Messages API.
type Client struct {
	client anthropic.Client
	model  string
}

// New creates a Claude classifier with the given API key and model name.
func New(apiKey, model string) *Client {
	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// classification mirrors the JSON shape the model is instructed to return.
type classification struct {
	Category                  string   `json:"category"`
	Urgency                   int      `json:"urgency"`
	Summary                   string   `json:"summary"`
	SuggestedAction           string   `json:"suggested_action"`
	DelegateTo                *string  `json:"delegate_to"`
	DraftReply                *string  `json:"draft_reply"`
	FollowUpDate              *string  `json:"follow_up_date"`
	KeyEntities               []string `json:"key_entities"`
	RequiresEscalationContact bool     `json:"requires_escalation_contact"`
	Reasoning                 string   `json:"reasoning"`
}

// Classify sends the email to Claude and parses the strict-JSON analysis.
func (c *Client) Classify(ctx context.Context, email *classifier.Email) (*classifier.Result, error) {
	prompt := fmt.Sprintf(`Analyze this email:

FROM: %s
SUBJECT: %s
RECEIVED: %s
BODY:
%s

Return only the JSON analysis.`,
		email.Sender, email.Subject, email.ReceivedAt.Format(time.RFC3339), email.Body)

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: responseTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("claude: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, fmt.Errorf("claude: no text content in response")
	}

	return parseClassification(text)
}

// parseClassification decodes the model output into a Result, tolerating
// markdown code fences the model sometimes adds despite instructions.
func parseClassification(raw string) (*classifier.Result, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.ReplaceAll(raw, "```json", "")
	raw = strings.ReplaceAll(raw, "```", "")
	raw = strings.TrimSpace(raw)

	var cl classification
	if err := json.Unmarshal([]byte(raw), &cl); err != nil {
		return nil, fmt.Errorf("claude: invalid JSON in response: %w", err)
	}

	res := &classifier.Result{
		Category:                  triage.Category(cl.Category),
		Urgency:                   cl.Urgency,
		Summary:                   cl.Summary,
		SuggestedAction:           triage.Action(cl.SuggestedAction),
		KeyEntities:               cl.KeyEntities,
		RequiresEscalationContact: cl.RequiresEscalationContact,
	}
	if cl.DelegateTo != nil {
		res.DelegateTo = *cl.DelegateTo
	}
	if cl.DraftReply != nil {
		res.DraftReply = *cl.DraftReply
	}
	if cl.FollowUpDate != nil && *cl.FollowUpDate != "" {
		d, err := time.Parse("2006-01-02", *cl.FollowUpDate)
		if err != nil {
			return nil, fmt.Errorf("claude: bad follow_up_date %q: %w", *cl.FollowUpDate, err)
		}
		res.FollowUpDate = &d
	}
	return res, nil
}
