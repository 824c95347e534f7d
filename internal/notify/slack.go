package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/warrantyeye/internal/models"
)

// SlackNotifier posts alerts to an incoming-webhook URL. Used when only a
// webhook is configured and no bot token is available.
type SlackNotifier struct {
	WebhookURL string
	Channel    string
	Username   string
}

type SlackMessage struct {
	Channel     string       `json:"channel,omitempty"`
	Username    string       `json:"username,omitempty"`
	IconEmoji   string       `json:"icon_emoji,omitempty"`
	Attachments []Attachment `json:"attachments"`
}

type Attachment struct {
	Color  string  `json:"color"`
	Title  string  `json:"title"`
	Text   string  `json:"text"`
	Fields []Field `json:"fields"`
	Footer string  `json:"footer"`
	Ts     int64   `json:"ts"`
}

type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

func NewSlackNotifier(webhookURL, channel, username string) *SlackNotifier {
	return &SlackNotifier{
		WebhookURL: webhookURL,
		Channel:    channel,
		Username:   username,
	}
}

func (s *SlackNotifier) Notify(alert *models.Alert) error {
	msg := &SlackMessage{
		Channel:   s.Channel,
		Username:  s.Username,
		IconEmoji: getAlertEmoji(alert.Severity),
		Attachments: []Attachment{
			{
				Color: getAlertColor(alert.Severity),
				Title: alert.Title,
				Text:  alert.Description,
				Fields: []Field{
					{
						Title: "Type",
						Value: string(alert.Type),
						Short: true,
					},
					{
						Title: "Severity",
						Value: string(alert.Severity),
						Short: true,
					},
					{
						Title: "Metric",
						Value: fmt.Sprintf("%.2f", alert.MetricValue),
						Short: true,
					},
					{
						Title: "Threshold",
						Value: fmt.Sprintf("%.2f", alert.Threshold),
						Short: true,
					},
				},
				Footer: "WarrantyEye Alert System",
				Ts:     time.Now().Unix(),
			},
		},
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal slack message: %v", err)
	}

	resp, err := http.Post(s.WebhookURL, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to send slack message: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack API returned non-200 status code: %d", resp.StatusCode)
	}

	return nil
}

func getAlertColor(severity models.AlertSeverity) string {
	switch severity {
	case models.AlertSeverityHigh:
		return "#FF0000"
	case models.AlertSeverityMedium:
		return "#FFA500"
	case models.AlertSeverityLow:
		return "#0000FF"
	default:
		return "#808080"
	}
}

func getAlertEmoji(severity models.AlertSeverity) string {
	switch severity {
	case models.AlertSeverityHigh:
		return ":red_circle:"
	case models.AlertSeverityMedium:
		return ":warning:"
	case models.AlertSeverityLow:
		return ":information_source:"
	default:
		return ":bell:"
	}
}
