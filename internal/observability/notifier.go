package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"
)

// maxRowsPerCondition caps the task rows listed under one condition so a
// large board stays under Slack's per-message block limit.
const maxRowsPerCondition = 10

// Notifier sends alert notifications to external channels.
type Notifier interface {
	Notify(ctx context.Context, alerts []Alert) error
}

// SlackNotifier posts board alerts to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewSlackNotifier creates a SlackNotifier for webhookURL.
func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type slackMessage struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Fields   []slackText `json:"fields,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func mrkdwn(s string) slackText { return slackText{Type: "mrkdwn", Text: s} }

// Notify posts alerts as one message grouped by condition. An empty slice
// sends nothing.
func (s *SlackNotifier) Notify(ctx context.Context, alerts []Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	body, err := json.Marshal(boardAlertMessage(alerts))
	if err != nil {
		return fmt.Errorf("marshaling slack message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		// Slack explains rejected payloads in a short plain-text body.
		reason, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("slack webhook returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(reason)))
	}
	return nil
}

var conditionTitles = map[string]string{
	ConditionTaskOverdue:     "Overdue",
	ConditionTaskStale:       "Stale in progress",
	ConditionBacklogTooLarge: "Backlog too large",
}

// conditionGroups buckets alerts by condition. Known conditions come first
// in severity order, anything else after them by name.
func conditionGroups(alerts []Alert) ([]string, map[string][]Alert) {
	groups := map[string][]Alert{}
	for _, a := range alerts {
		groups[a.Condition] = append(groups[a.Condition], a)
	}
	var order []string
	for _, c := range []string{ConditionTaskOverdue, ConditionTaskStale, ConditionBacklogTooLarge} {
		if len(groups[c]) > 0 {
			order = append(order, c)
		}
	}
	var other []string
	for c := range groups {
		if _, known := conditionTitles[c]; !known {
			other = append(other, c)
		}
	}
	slices.Sort(other)
	return append(order, other...), groups
}

func boardAlertMessage(alerts []Alert) slackMessage {
	summary := fmt.Sprintf("aipm: %d board alert(s)", len(alerts))
	blocks := []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: summary}},
		{Type: "context", Elements: []slackText{mrkdwn("Checked " + alerts[0].TriggeredAt.UTC().Format("2006-01-02 15:04 UTC"))}},
	}

	order, groups := conditionGroups(alerts)
	for _, cond := range order {
		group := groups[cond]
		title, ok := conditionTitles[cond]
		if !ok {
			title = cond
		}
		blocks = append(blocks,
			slackBlock{Type: "divider"},
			slackBlock{Type: "section", Text: &slackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("%s *%s* (%d)", severityEmoji(group[0].Severity), title, len(group)),
			}},
		)
		for i, a := range group {
			if i == maxRowsPerCondition {
				blocks = append(blocks, slackBlock{Type: "context", Elements: []slackText{
					mrkdwn(fmt.Sprintf("and %d more %s", len(group)-i, strings.ToLower(title))),
				}})
				break
			}
			blocks = append(blocks, alertBlock(a))
		}
	}
	return slackMessage{Text: summary, Blocks: blocks}
}

func alertBlock(a Alert) slackBlock {
	switch {
	case a.Task != nil:
		fields := []slackText{
			mrkdwn(fmt.Sprintf("*Task*\n`%s` %s", a.Task.ShortID, slackEscape(a.Task.Title))),
			mrkdwn("*Bucket*\n" + slackEscape(a.Task.Bucket)),
		}
		if a.Task.DueDate != nil {
			fields = append(fields, mrkdwn("*Due*\n"+a.Task.DueDate.String()))
		}
		if a.Condition == ConditionTaskStale {
			fields = append(fields, mrkdwn("*Last change*\n"+a.Task.UpdatedAt.UTC().Format("2006-01-02")))
		}
		return slackBlock{Type: "section", Fields: fields}
	case a.Backlog != nil:
		return slackBlock{Type: "section", Fields: []slackText{
			mrkdwn(fmt.Sprintf("*In backlog*\n%d tasks", a.Backlog.Tasks)),
			mrkdwn(fmt.Sprintf("*Limit*\n%d", a.Backlog.Limit)),
		}}
	default:
		return slackBlock{Type: "section", Text: &slackText{Type: "mrkdwn", Text: slackEscape(a.Message)}}
	}
}

var slackEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func slackEscape(s string) string { return slackEscaper.Replace(s) }

func severityEmoji(severity AlertSeverity) string {
	switch severity {
	case SeverityHigh:
		return "\U0001f534"
	case SeverityMedium:
		return "\U0001f7e1"
	case SeverityLow:
		return "\U0001f535"
	default:
		return "❓"
	}
}
