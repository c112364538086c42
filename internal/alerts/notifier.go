package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/multierr"

	"github.com/ozxc44/queue-monitor-dev/internal/config"
	"github.com/ozxc44/queue-monitor-dev/internal/logger"
)

// ErrDispatch wraps every notification transport failure.
var ErrDispatch = errors.New("alert dispatch failed")

const (
	telegramAPI  = "https://api.telegram.org"
	pagerDutyAPI = "https://events.pagerduty.com/v2/enqueue"
)

type Notifier interface {
	Notify(ctx context.Context, event AlertEvent) error
}

type MultiNotifier struct {
	notifiers []Notifier
}

// Notify delivers to every channel; one failing channel does not stop the rest.
func (m *MultiNotifier) Notify(ctx context.Context, event AlertEvent) error {
	var errs error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, event); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func NewNotifier(cfg config.AlertsConfig) Notifier {
	client := &http.Client{Timeout: 5 * time.Second}
	if d := cfg.DispatchDuration(); d > 0 {
		client.Timeout = d
	}

	notifiers := []Notifier{&LogNotifier{}}

	if cfg.Webhook != "" {
		notifiers = append(notifiers, &WebhookNotifier{url: cfg.Webhook, client: client})
	}
	if cfg.Channels.PagerDuty.Enabled && cfg.Channels.PagerDuty.RoutingKey != "" {
		notifiers = append(notifiers, &PagerDutyNotifier{routingKey: cfg.Channels.PagerDuty.RoutingKey, endpoint: pagerDutyAPI, client: client})
	}
	if cfg.Channels.Discord.Enabled && cfg.Channels.Discord.Webhook != "" {
		notifiers = append(notifiers, &DiscordNotifier{webhook: cfg.Channels.Discord.Webhook, client: client})
	}
	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token != "" && cfg.Channels.Telegram.ChatID != "" {
		notifiers = append(notifiers, &TelegramNotifier{token: cfg.Channels.Telegram.Token, chatID: cfg.Channels.Telegram.ChatID, baseURL: telegramAPI, client: client})
	}
	if cfg.Channels.Slack.Enabled && cfg.Channels.Slack.Webhook != "" {
		notifiers = append(notifiers, &SlackNotifier{webhook: cfg.Channels.Slack.Webhook, client: client})
	}

	return &MultiNotifier{notifiers: notifiers}
}

type LogNotifier struct{}

func (l *LogNotifier) Notify(ctx context.Context, event AlertEvent) error {
	logger.Warn("ALERT", "%s | %s | %s", event.Severity, event.Kind, event.Message)
	return nil
}

// Generic webhook. The "text" field is what Slack-compatible receivers render.
type webhookPayload struct {
	Text      string   `json:"text"`
	ID        string   `json:"id"`
	Queue     string   `json:"queue"`
	Kind      Kind     `json:"kind"`
	Severity  Severity `json:"severity"`
	Depth     int64    `json:"depth"`
	Failed    int64    `json:"failed"`
	Workers   int64    `json:"workers"`
	Timestamp string   `json:"timestamp"`
}

type WebhookNotifier struct {
	url    string
	client *http.Client
}

func formatWebhook(event AlertEvent) webhookPayload {
	return webhookPayload{
		Text:      fmt.Sprintf("%s %s", severityEmoji(event.Severity), event.Message),
		ID:        event.ID,
		Queue:     event.Queue,
		Kind:      event.Kind,
		Severity:  event.Severity,
		Depth:     event.Sample.Depth(),
		Failed:    event.Sample.Failed,
		Workers:   event.Sample.Workers,
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
	}
}

func (w *WebhookNotifier) Notify(ctx context.Context, event AlertEvent) error {
	if w.url == "" {
		return nil
	}
	return postJSON(ctx, w.client, w.url, formatWebhook(event))
}

// Discord embed structures
type discordEmbed struct {
	Title     string         `json:"title"`
	Color     int            `json:"color"`
	Fields    []discordField `json:"fields"`
	Timestamp string         `json:"timestamp"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

func formatDiscordEmbed(event AlertEvent) discordPayload {
	fields := []discordField{
		{Name: "Queue", Value: event.Queue, Inline: false},
		{Name: "Severity", Value: string(event.Severity), Inline: true},
	}
	for _, detail := range event.Details {
		fields = append(fields, discordField{Name: detail.Label, Value: detail.Value, Inline: true})
	}

	return discordPayload{
		Embeds: []discordEmbed{{
			Title:     fmt.Sprintf("%s %s", severityEmoji(event.Severity), event.Title),
			Color:     severityColor(event.Severity),
			Fields:    fields,
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		}},
	}
}

type DiscordNotifier struct {
	webhook string
	client  *http.Client
}

func (d *DiscordNotifier) Notify(ctx context.Context, event AlertEvent) error {
	if d.webhook == "" {
		return nil
	}
	return postJSON(ctx, d.client, d.webhook, formatDiscordEmbed(event))
}

// Slack Block Kit structures
type slackPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func formatSlackBlocks(event AlertEvent) slackPayload {
	header := fmt.Sprintf("%s %s", severityEmoji(event.Severity), event.Title)
	fields := []slackText{
		{Type: "mrkdwn", Text: fmt.Sprintf("*Queue:*\n%s", event.Queue)},
		{Type: "mrkdwn", Text: fmt.Sprintf("*Severity:*\n%s", event.Severity)},
	}
	for _, detail := range event.Details {
		fields = append(fields, slackText{Type: "mrkdwn", Text: fmt.Sprintf("*%s:*\n%s", detail.Label, detail.Value)})
	}

	return slackPayload{
		Text: event.Message,
		Blocks: []slackBlock{
			{
				Type: "header",
				Text: &slackText{Type: "plain_text", Text: header},
			},
			{
				Type:   "section",
				Fields: fields,
			},
		},
	}
}

type SlackNotifier struct {
	webhook string
	client  *http.Client
}

func (s *SlackNotifier) Notify(ctx context.Context, event AlertEvent) error {
	if s.webhook == "" {
		return nil
	}
	return postJSON(ctx, s.client, s.webhook, formatSlackBlocks(event))
}

func formatTelegramHTML(event AlertEvent) string {
	message := fmt.Sprintf(
		"<b>%s %s</b>\n\n<b>Queue:</b> %s\n<b>Severity:</b> %s",
		severityEmoji(event.Severity), event.Title, event.Queue, event.Severity,
	)
	for _, detail := range event.Details {
		message += fmt.Sprintf("\n<b>%s:</b> %s", detail.Label, detail.Value)
	}
	return message
}

type TelegramNotifier struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
}

func (t *TelegramNotifier) Notify(ctx context.Context, event AlertEvent) error {
	if t.token == "" || t.chatID == "" {
		return nil
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	payload := map[string]string{
		"chat_id":    t.chatID,
		"text":       formatTelegramHTML(event),
		"parse_mode": "HTML",
	}
	return postJSON(ctx, t.client, url, payload)
}

type PagerDutyNotifier struct {
	routingKey string
	endpoint   string
	client     *http.Client
}

type pagerDutyPayload struct {
	RoutingKey  string        `json:"routing_key"`
	EventAction string        `json:"event_action"`
	DedupKey    string        `json:"dedup_key"`
	Payload     pagerDutyBody `json:"payload"`
}

type pagerDutyBody struct {
	Summary   string            `json:"summary"`
	Source    string            `json:"source"`
	Severity  string            `json:"severity"`
	Timestamp string            `json:"timestamp"`
	Custom    map[string]string `json:"custom_details,omitempty"`
}

func formatPagerDuty(routingKey string, event AlertEvent) pagerDutyPayload {
	return pagerDutyPayload{
		RoutingKey:  routingKey,
		EventAction: "trigger",
		DedupKey:    event.Key.String(),
		Payload: pagerDutyBody{
			Summary:   event.Message,
			Source:    event.Queue,
			Severity:  string(event.Severity),
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Custom:    formatPagerDutyDetails(event),
		},
	}
}

func (p *PagerDutyNotifier) Notify(ctx context.Context, event AlertEvent) error {
	if p.routingKey == "" {
		return nil
	}
	return postJSON(ctx, p.client, p.endpoint, formatPagerDuty(p.routingKey, event))
}

func formatPagerDutyDetails(event AlertEvent) map[string]string {
	if len(event.Details) == 0 {
		return nil
	}
	custom := make(map[string]string, len(event.Details))
	for _, detail := range event.Details {
		custom[detail.Label] = detail.Value
	}
	return custom
}

func postJSON(ctx context.Context, client *http.Client, url string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDispatch, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDispatch, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: unexpected status %d from %s", ErrDispatch, resp.StatusCode, req.URL.Host)
	}
	return nil
}
