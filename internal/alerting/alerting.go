// Package alerting delivers batch failure notifications to an operations
// webhook. Slack and Discord get native rich payloads; anything else gets
// a flat JSON document.
package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

// maxFailureDetails caps how many per-site failures a single alert lists.
// Bulk batches can fail thousands of sites at once; the webhook gets a
// sample and a count, not the whole ledger.
const maxFailureDetails = 10

// AlertConfig controls where and when alerts go out.
type AlertConfig struct {
	WebhookURL  string
	WebhookType string // "slack", "discord" or "generic"
	Enabled     bool
	// MinFailuresBeforeAlert suppresses alerts for small failure counts.
	MinFailuresBeforeAlert int
	Timeout                time.Duration
}

// ConfigFor builds an AlertConfig from a webhook URL and type, detecting
// the type from the URL when it is not given. An empty URL disables
// alerting.
func ConfigFor(webhookURL, webhookType string) AlertConfig {
	if webhookType == "" {
		webhookType = detectType(webhookURL)
	}
	return AlertConfig{
		WebhookURL:             webhookURL,
		WebhookType:            webhookType,
		Enabled:                webhookURL != "",
		MinFailuresBeforeAlert: 1,
		Timeout:                10 * time.Second,
	}
}

func detectType(url string) string {
	switch {
	case strings.Contains(url, "slack.com"):
		return "slack"
	case strings.Contains(url, "discord.com"):
		return "discord"
	default:
		return "generic"
	}
}

// Alerter sends alerts to the configured webhook.
type Alerter struct {
	cfg    AlertConfig
	client *http.Client
}

func NewAlerter(cfg AlertConfig) *Alerter {
	return &Alerter{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// BatchAlert describes a finished batch assessment with failures.
type BatchAlert struct {
	BatchName      string
	TotalSites     int
	ProcessedSites int
	FailedSites    int
	Duration       time.Duration
	FailedDetails  []SiteFailure
	Timestamp      time.Time
}

// SiteFailure is one site that could not be assessed.
type SiteFailure struct {
	SiteID string `json:"site_id"`
	Error  string `json:"error"`
}

// SendBatchAlert posts the alert unless alerting is disabled or the
// failure count is under the threshold.
func (a *Alerter) SendBatchAlert(ctx context.Context, alert BatchAlert) error {
	if !a.cfg.Enabled {
		log.Printf("alerting: alerts disabled, skipping")
		return nil
	}
	if alert.FailedSites < a.cfg.MinFailuresBeforeAlert {
		log.Printf("alerting: %d failures below threshold (%d), skipping",
			alert.FailedSites, a.cfg.MinFailuresBeforeAlert)
		return nil
	}

	var payload interface{}
	switch a.cfg.WebhookType {
	case "slack":
		payload = slackPayload(alert)
	case "discord":
		payload = discordPayload(alert)
	default:
		payload = genericPayload(alert)
	}

	if err := a.post(ctx, payload); err != nil {
		return err
	}
	log.Printf("alerting: sent alert for %d failed sites", alert.FailedSites)
	return nil
}

func (a *Alerter) post(ctx context.Context, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("build payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// capDetails returns at most maxFailureDetails entries and how many were
// dropped.
func capDetails(details []SiteFailure) ([]SiteFailure, int) {
	if len(details) <= maxFailureDetails {
		return details, 0
	}
	return details[:maxFailureDetails], len(details) - maxFailureDetails
}

// failureList renders the capped failures one per line with the given
// bullet and emphasis markers.
func failureList(alert BatchAlert, bullet, em string) string {
	details, dropped := capDetails(alert.FailedDetails)

	var b strings.Builder
	for _, f := range details {
		fmt.Fprintf(&b, "%s %s%s%s: %s\n", bullet, em, f.SiteID, em, f.Error)
	}
	if dropped > 0 {
		fmt.Fprintf(&b, "... and %d more\n", dropped)
	}
	return b.String()
}

func mrkdwn(text string) map[string]string {
	return map[string]string{"type": "mrkdwn", "text": text}
}

func slackPayload(alert BatchAlert) interface{} {
	emoji := ":warning:"
	if alert.FailedSites == alert.TotalSites {
		emoji = ":x:"
	}

	return map[string]interface{}{
		"blocks": []map[string]interface{}{
			{
				"type": "header",
				"text": map[string]string{
					"type": "plain_text",
					"text": fmt.Sprintf("%s Batch Assessment Alert: %s", emoji, alert.BatchName),
				},
			},
			{
				"type": "section",
				"fields": []map[string]string{
					mrkdwn(fmt.Sprintf("*Status:*\n%d/%d sites failed", alert.FailedSites, alert.TotalSites)),
					mrkdwn(fmt.Sprintf("*Duration:*\n%s", alert.Duration.Round(time.Millisecond))),
					mrkdwn(fmt.Sprintf("*Assessed:*\n%d", alert.ProcessedSites)),
					mrkdwn(fmt.Sprintf("*Timestamp:*\n%s", alert.Timestamp.Format(time.RFC3339))),
				},
			},
			{
				"type": "section",
				"text": mrkdwn(fmt.Sprintf("*Failed Sites:*\n%s", failureList(alert, "•", "*"))),
			},
		},
	}
}

func discordField(name, value string, inline bool) map[string]interface{} {
	return map[string]interface{}{"name": name, "value": value, "inline": inline}
}

func discordPayload(alert BatchAlert) interface{} {
	color := 16776960 // yellow
	if alert.FailedSites == alert.TotalSites {
		color = 16711680 // red
	}

	return map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       fmt.Sprintf("Batch Assessment Alert: %s", alert.BatchName),
				"description": fmt.Sprintf("%d/%d sites failed", alert.FailedSites, alert.TotalSites),
				"color":       color,
				"fields": []map[string]interface{}{
					discordField("Assessed", fmt.Sprintf("%d", alert.ProcessedSites), true),
					discordField("Failed", fmt.Sprintf("%d", alert.FailedSites), true),
					discordField("Duration", alert.Duration.Round(time.Millisecond).String(), true),
					discordField("Failed Sites", failureList(alert, "•", "**"), false),
				},
				"timestamp": alert.Timestamp.Format(time.RFC3339),
			},
		},
	}
}

func genericPayload(alert BatchAlert) interface{} {
	details, _ := capDetails(alert.FailedDetails)
	return map[string]interface{}{
		"alert_type":      "batch_assessment_failure",
		"batch_name":      alert.BatchName,
		"total_sites":     alert.TotalSites,
		"processed_sites": alert.ProcessedSites,
		"failed_sites":    alert.FailedSites,
		"duration_ms":     alert.Duration.Milliseconds(),
		"timestamp":       alert.Timestamp.Format(time.RFC3339),
		"failed_details":  details,
	}
}
