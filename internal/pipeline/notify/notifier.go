// internal/pipeline/notify/notifier.go
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"lead-radar/internal/common/errors"
	commonhttp "lead-radar/internal/common/http"
	"lead-radar/internal/common/logger"
	"lead-radar/internal/common/metrics"
	"lead-radar/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Define interfaces for mocking
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Notifier delivers approved leads to the configured channels. A lead is
// considered notified only when every enabled channel accepted it.
type Notifier struct {
	config     *Config
	httpClient *commonhttp.Client
	sesClient  SESService
	snsClient  SNSService
	logger     logger.Logger
}

func NewNotifier(cfg *Config, log logger.Logger) (*Notifier, error) {
	n := &Notifier{
		config:     cfg,
		httpClient: commonhttp.NewClient(cfg.SlackTimeout),
		logger:     log.WithFields(map[string]interface{}{"component": "notifier"}),
	}

	if cfg.EmailEnabled || cfg.SMSEnabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		n.sesClient = ses.NewFromConfig(awsCfg)
		n.snsClient = sns.NewFromConfig(awsCfg)
	}

	return n, nil
}

// Notify sends the lead through every enabled channel. The first channel
// failure aborts and surfaces as a retryable error so the caller can replay
// the whole delivery.
func (n *Notifier) Notify(ctx context.Context, lead *models.Lead) error {
	if !n.config.SlackEnabled && !n.config.EmailEnabled && !n.config.SMSEnabled {
		n.logger.Warn("all notification channels disabled, skipping", map[string]interface{}{
			"leadId": lead.ID,
		})
		return nil
	}

	message := BuildMessage(lead)

	if n.config.SlackEnabled {
		if err := n.sendSlack(ctx, lead, message); err != nil {
			metrics.NotificationsSent.WithLabelValues("slack", "failed").Inc()
			return errors.NewNotificationSendFailedError("slack", err)
		}
		metrics.NotificationsSent.WithLabelValues("slack", "sent").Inc()
	}

	if n.config.EmailEnabled {
		subject := fmt.Sprintf("New Lead Alert: %s", lead.Company)
		if err := n.sendEmail(ctx, subject, message); err != nil {
			metrics.NotificationsSent.WithLabelValues("email", "failed").Inc()
			return errors.NewNotificationSendFailedError("email", err)
		}
		metrics.NotificationsSent.WithLabelValues("email", "sent").Inc()
	}

	// SMS only escalates urgent leads
	if n.config.SMSEnabled && lead.Urgent(n.config.UrgencyThreshold) {
		if err := n.sendSMS(ctx, message); err != nil {
			metrics.NotificationsSent.WithLabelValues("sms", "failed").Inc()
			return errors.NewNotificationSendFailedError("sms", err)
		}
		metrics.NotificationsSent.WithLabelValues("sms", "sent").Inc()
	}

	n.logger.Info("lead notification delivered", map[string]interface{}{
		"leadId":  lead.ID,
		"company": lead.Company,
	})
	return nil
}

// sendSlack posts the rendered text plus the structured lead fields, so
// non-Slack webhook receivers can consume the same payload.
func (n *Notifier) sendSlack(ctx context.Context, lead *models.Lead, message string) error {
	payload := map[string]interface{}{
		"text":             message,
		"unfurl_links":     true,
		"unfurl_media":     true,
		"title":            lead.Title,
		"description":      lead.Description,
		"source_url":       lead.URL,
		"relevance_score":  lead.RelevanceScore,
		"value_types":      lead.ValueTypeStrings(),
		"suggested_action": strings.Join(lead.ActionItems, "; "),
		"company":          lead.Company,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, n.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.DoWithContext(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (n *Notifier) sendEmail(ctx context.Context, subject, body string) error {
	if n.sesClient == nil {
		return fmt.Errorf("SES client not configured")
	}

	_, err := n.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: n.config.ToEmails,
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.config.FromEmail),
	})
	return err
}

func (n *Notifier) sendSMS(ctx context.Context, message string) error {
	if n.snsClient == nil {
		return fmt.Errorf("SNS client not configured")
	}

	for _, phone := range n.config.PhoneNumbers {
		_, err := n.snsClient.Publish(ctx, &sns.PublishInput{
			PhoneNumber: aws.String(phone),
			Message:     aws.String(message),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// BuildMessage renders the alert text shared by all channels.
func BuildMessage(lead *models.Lead) string {
	var b strings.Builder

	fmt.Fprintf(&b, "🔍 *New Lead Alert for %s*\n", lead.Company)
	fmt.Fprintf(&b, "<%s|%s>\n", lead.URL, lead.Title)

	if lead.ValueExplanation != "" {
		fmt.Fprintf(&b, "\n*Why this matters:*\n%s\n", lead.ValueExplanation)
	}

	if len(lead.ValueTypes) > 0 {
		names := make([]string, len(lead.ValueTypes))
		for i, vt := range lead.ValueTypes {
			names[i] = strings.ReplaceAll(string(vt), "_", " ")
		}
		fmt.Fprintf(&b, "\n*Value Types:* %s\n", strings.Join(names, ", "))
	}

	if len(lead.ActionItems) > 0 {
		b.WriteString("\n*Suggested Actions:*\n")
		for _, action := range lead.ActionItems {
			fmt.Fprintf(&b, "📌 %s\n", action)
		}
	}

	fmt.Fprintf(&b, "\n*Relevance:* %.0f%%", lead.RelevanceScore*100)
	return b.String()
}
