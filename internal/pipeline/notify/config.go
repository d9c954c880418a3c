// internal/pipeline/notify/config.go
package notify

import (
	"time"

	"lead-radar/internal/common/config"
)

// Config holds settings for outbound lead notifications.
type Config struct {
	SlackEnabled bool
	WebhookURL   string
	SlackTimeout time.Duration

	EmailEnabled bool
	FromEmail    string
	ToEmails     []string

	SMSEnabled       bool
	UrgencyThreshold float64
	PhoneNumbers     []string

	AWSRegion string
}

func NewConfig(cfg *config.Config) *Config {
	return &Config{
		SlackEnabled:     cfg.Notifications.Slack.Enabled,
		WebhookURL:       cfg.Notifications.Slack.WebhookURL,
		SlackTimeout:     config.GetDuration(cfg.Notifications.Slack.Timeout),
		EmailEnabled:     cfg.Notifications.Email.Enabled,
		FromEmail:        cfg.Notifications.Email.FromEmail,
		ToEmails:         cfg.Notifications.Email.ToEmails,
		SMSEnabled:       cfg.Notifications.SMS.Enabled,
		UrgencyThreshold: cfg.Notifications.SMS.UrgencyThreshold,
		PhoneNumbers:     cfg.Notifications.SMS.PhoneNumbers,
		AWSRegion:        cfg.Notifications.AWS.Region,
	}
}
