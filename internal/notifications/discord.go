// Package notifications announces new permit applications to council staff
// through a Discord webhook.
package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultUsername is the webhook display name used when none is configured.
const DefaultUsername = "Corsair Council Registry"

// DiscordColorGold is the embed color for new submissions (#F1C40F).
const DiscordColorGold = 15844367

// maxFieldLength is Discord's limit for an embed field value.
const maxFieldLength = 1024

// DiscordConfig configures the webhook notifier.
type DiscordConfig struct {
	WebhookURL string
	Username   string
	AvatarURL  string
	// PublicBaseURL, when set, is used to link the embed to the admin detail page.
	PublicBaseURL string
	// RequireHTTPS rejects plain-http webhook URLs.
	RequireHTTPS bool
}

// DeliveryRecorder observes notification outcomes.
type DeliveryRecorder interface {
	RecordNotification(delivered bool)
}

// DiscordService sends staff notifications via a Discord webhook.
type DiscordService struct {
	config   DiscordConfig
	client   *http.Client
	recorder DeliveryRecorder
	logger   zerolog.Logger
}

// NewDiscordService creates a webhook notifier. client may be nil.
func NewDiscordService(cfg DiscordConfig, client *http.Client, logger zerolog.Logger) (*DiscordService, error) {
	if err := ValidateWebhookURL(cfg.WebhookURL, cfg.RequireHTTPS); err != nil {
		return nil, err
	}
	if cfg.Username == "" {
		cfg.Username = DefaultUsername
	}
	cfg.PublicBaseURL = strings.TrimSuffix(cfg.PublicBaseURL, "/")
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &DiscordService{
		config: cfg,
		client: client,
		logger: logger.With().Str("component", "discord_notifier").Logger(),
	}, nil
}

// WithRecorder attaches an outcome recorder, typically the Prometheus metrics.
func (s *DiscordService) WithRecorder(r DeliveryRecorder) *DiscordService {
	s.recorder = r
	return s
}

// ValidateWebhookURL checks that raw looks like a Discord webhook endpoint.
func ValidateWebhookURL(raw string, requireHTTPS bool) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("discord webhook URL is required")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}

	switch parsed.Scheme {
	case "https":
	case "http":
		if requireHTTPS {
			return fmt.Errorf("webhook URL must use HTTPS")
		}
	default:
		return fmt.Errorf("webhook URL must use HTTP or HTTPS scheme")
	}

	if parsed.Hostname() == "" {
		return fmt.Errorf("webhook URL must have a host")
	}
	if !strings.Contains(parsed.Path, "/webhooks/") {
		return fmt.Errorf("webhook URL must point at a /webhooks/ endpoint")
	}
	return nil
}

// DiscordMessage represents a Discord webhook message.
type DiscordMessage struct {
	Content   string         `json:"content,omitempty"`
	Username  string         `json:"username,omitempty"`
	AvatarURL string         `json:"avatar_url,omitempty"`
	Embeds    []DiscordEmbed `json:"embeds,omitempty"`
}

// DiscordEmbed represents a Discord embed object.
type DiscordEmbed struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	URL         string              `json:"url,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Fields      []DiscordEmbedField `json:"fields,omitempty"`
	Footer      *DiscordEmbedFooter `json:"footer,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
}

// DiscordEmbedField represents a field in a Discord embed.
type DiscordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// DiscordEmbedFooter represents a footer in a Discord embed.
type DiscordEmbedFooter struct {
	Text string `json:"text,omitempty"`
}

// PermitSubmitted describes a newly recorded permit application.
type PermitSubmitted struct {
	ID          int64
	FullName    string
	Alias       string
	Crew        string
	PermitType  string
	Attachments int
	SubmittedAt time.Time
}

// Send posts a message to the webhook.
func (s *DiscordService) Send(ctx context.Context, msg *DiscordMessage) error {
	if msg.Username == "" {
		msg.Username = s.config.Username
	}
	if msg.AvatarURL == "" && s.config.AvatarURL != "" {
		msg.AvatarURL = s.config.AvatarURL
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal discord message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send discord request: %w", err)
	}
	defer resp.Body.Close()

	// Discord webhooks return 204 No Content on success
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	return nil
}

// PermitSubmittedMessage builds the embed announcing a submission.
func (s *DiscordService) PermitSubmittedMessage(data PermitSubmitted) *DiscordMessage {
	applicant := data.FullName
	if data.Alias != "" {
		applicant = fmt.Sprintf("%s (%s)", data.FullName, data.Alias)
	}

	fields := []DiscordEmbedField{
		{Name: "Applicant", Value: truncate(applicant), Inline: true},
		{Name: "Permit", Value: truncate(data.PermitType), Inline: true},
	}
	if data.Crew != "" {
		fields = append(fields, DiscordEmbedField{Name: "Crew", Value: truncate(data.Crew), Inline: true})
	}
	fields = append(fields, DiscordEmbedField{
		Name:   "Supporting Files",
		Value:  fmt.Sprintf("%d", data.Attachments),
		Inline: true,
	})

	embed := DiscordEmbed{
		Title:       fmt.Sprintf("Permit Application #%d", data.ID),
		Description: fmt.Sprintf("A new application for **%s** awaits review.", data.PermitType),
		Color:       DiscordColorGold,
		Fields:      fields,
		Footer:      &DiscordEmbedFooter{Text: "Council Registry of Aurospan"},
		Timestamp:   data.SubmittedAt.UTC().Format(time.RFC3339),
	}
	if s.config.PublicBaseURL != "" {
		embed.URL = fmt.Sprintf("%s/admin/app/%d", s.config.PublicBaseURL, data.ID)
	}

	return &DiscordMessage{Embeds: []DiscordEmbed{embed}}
}

// NotifyPermitSubmitted announces a submission. Delivery failures are logged
// and never returned.
func (s *DiscordService) NotifyPermitSubmitted(ctx context.Context, data PermitSubmitted) {
	err := s.Send(ctx, s.PermitSubmittedMessage(data))
	if s.recorder != nil {
		s.recorder.RecordNotification(err == nil)
	}
	if err != nil {
		s.logger.Warn().Err(err).
			Int64("application_id", data.ID).
			Msg("failed to notify staff of permit submission")
		return
	}

	s.logger.Debug().
		Int64("application_id", data.ID).
		Str("permit_type", data.PermitType).
		Msg("staff notified of permit submission")
}

func truncate(v string) string {
	if v == "" {
		return "-"
	}
	runes := []rune(v)
	if len(runes) <= maxFieldLength {
		return v
	}
	return string(runes[:maxFieldLength-3]) + "..."
}
