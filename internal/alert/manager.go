package alert

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/slack-go/slack"
	"github.com/warrantyeye/internal/models"
	"github.com/warrantyeye/internal/notify"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"
)

var (
	// ErrInvalidTransition is returned for lifecycle operations attempted on
	// a RESOLVED alert. RESOLVED is terminal.
	ErrInvalidTransition = errors.New("invalid alert state transition")

	ErrAlertNotFound = errors.New("alert not found")
)

// NotifyConfig holds the delivery channels for newly created alerts. Empty
// fields disable the corresponding channel.
type NotifyConfig struct {
	SlackToken      string
	SlackChannel    string
	SlackWebhookURL string
	SMTPHost        string
	SMTPPort        int
	EmailFrom       string
	EmailPassword   string
	EmailReceivers  []string
}

// Manager owns the alert lifecycle (acknowledge/resolve), list queries, and
// notification fan-out for alerts the evaluator creates.
type Manager struct {
	db           *gorm.DB
	slackClient  *slack.Client
	slackWebhook *notify.SlackNotifier
	emailDialer  *gomail.Dialer
	config       *NotifyConfig
}

func NewManager(db *gorm.DB, config *NotifyConfig) *Manager {
	m := &Manager{db: db, config: config}
	if config == nil {
		return m
	}
	if config.SlackToken != "" {
		m.slackClient = slack.New(config.SlackToken)
	}
	if config.SlackWebhookURL != "" {
		m.slackWebhook = notify.NewSlackNotifier(config.SlackWebhookURL, config.SlackChannel, "warrantyeye")
	}
	if config.SMTPHost != "" {
		m.emailDialer = gomail.NewDialer(config.SMTPHost, config.SMTPPort, config.EmailFrom, config.EmailPassword)
	}
	return m
}

// ListFilter narrows ListAlerts. Empty fields match everything.
type ListFilter struct {
	Status   string
	Type     string
	Severity string
}

func (m *Manager) ListAlerts(filter ListFilter) ([]models.Alert, error) {
	query := m.db.Order("created_at desc")
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}

	var alerts []models.Alert
	if err := query.Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to list alerts: %v", err)
	}
	return alerts, nil
}

func (m *Manager) GetAlert(alertID uint) (*models.Alert, error) {
	var alert models.Alert
	if err := m.db.First(&alert, alertID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to find alert: %v", err)
	}
	return &alert, nil
}

// Acknowledge moves an OPEN alert to ACKNOWLEDGED. Acknowledging an already
// acknowledged alert is an idempotent no-op; a RESOLVED alert rejects the
// transition.
func (m *Manager) Acknowledge(alertID uint, userID string) (*models.Alert, error) {
	alert, err := m.GetAlert(alertID)
	if err != nil {
		return nil, err
	}

	switch alert.Status {
	case models.AlertStatusResolved:
		return nil, ErrInvalidTransition
	case models.AlertStatusAcknowledged:
		return alert, nil
	}

	now := time.Now()
	alert.Status = models.AlertStatusAcknowledged
	alert.AcknowledgedBy = userID
	alert.AcknowledgedAt = &now

	if err := m.db.Save(alert).Error; err != nil {
		return nil, fmt.Errorf("failed to update alert: %v", err)
	}
	return alert, nil
}

// Resolve moves an OPEN or ACKNOWLEDGED alert to RESOLVED, storing the
// optional note. RESOLVED alerts reject a second resolve.
func (m *Manager) Resolve(alertID uint, userID, note string) (*models.Alert, error) {
	alert, err := m.GetAlert(alertID)
	if err != nil {
		return nil, err
	}

	if alert.Status == models.AlertStatusResolved {
		return nil, ErrInvalidTransition
	}

	now := time.Now()
	alert.Status = models.AlertStatusResolved
	alert.ResolutionNote = note
	alert.ResolvedBy = userID
	alert.ResolvedAt = &now

	if err := m.db.Save(alert).Error; err != nil {
		return nil, fmt.Errorf("failed to update alert: %v", err)
	}
	return alert, nil
}

// NotifyNew fans a freshly created alert out to the configured channels.
// Delivery failures are logged, never propagated to the evaluation pass.
func (m *Manager) NotifyNew(alert *models.Alert) {
	if m.slackClient != nil {
		if err := m.sendSlackAlert(alert); err != nil {
			log.Printf("failed to send slack alert %d: %v", alert.ID, err)
		}
	}
	if m.slackWebhook != nil {
		if err := m.slackWebhook.Notify(alert); err != nil {
			log.Printf("failed to send slack webhook alert %d: %v", alert.ID, err)
		}
	}
	if m.emailDialer != nil && len(m.config.EmailReceivers) > 0 {
		if err := m.sendEmailAlert(alert); err != nil {
			log.Printf("failed to send email alert %d: %v", alert.ID, err)
		}
	}
}

func (m *Manager) sendSlackAlert(alert *models.Alert) error {
	attachment := slack.Attachment{
		Color: severityColor(alert.Severity),
		Title: alert.Title,
		Text:  alert.Description,
		Fields: []slack.AttachmentField{
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
		Footer: "WarrantyEye Alert",
	}

	_, _, err := m.slackClient.PostMessage(
		m.config.SlackChannel,
		slack.MsgOptionAttachments(attachment),
	)
	return err
}

func (m *Manager) sendEmailAlert(alert *models.Alert) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.config.EmailFrom)
	msg.SetHeader("To", m.config.EmailReceivers...)
	msg.SetHeader("Subject", fmt.Sprintf("Warranty Alert [%s]: %s", alert.Severity, alert.Title))

	body := fmt.Sprintf(`
		Alert: %s
		Type: %s
		Severity: %s
		Metric: %.2f (threshold %.2f)
		%s
		Time: %s
	`, alert.Title, alert.Type, alert.Severity,
		alert.MetricValue, alert.Threshold, alert.Description,
		alert.CreatedAt.Format(time.RFC3339))

	msg.SetBody("text/plain", body)

	return m.emailDialer.DialAndSend(msg)
}

func severityColor(severity models.AlertSeverity) string {
	switch severity {
	case models.AlertSeverityLow:
		return "#36a64f"
	case models.AlertSeverityMedium:
		return "#ffcc00"
	case models.AlertSeverityHigh:
		return "#ff0000"
	default:
		return "#808080"
	}
}
