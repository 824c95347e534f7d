package report

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"sort"
	"time"

	"github.com/jordan-wright/email"
	"github.com/warrantyeye/internal/models"
	"gorm.io/gorm"
)

// Generator builds the periodic operational summary managers receive by
// email: ticket KPIs, top faulty products, center performance, and alert
// volume by severity.
type Generator struct {
	db   *gorm.DB
	tmpl *template.Template
}

type Data struct {
	StartTime     time.Time
	EndTime       time.Time
	OpenTickets   int64
	InRepair      int64
	NewTickets    int64
	AlertsOpen    int64
	AlertsBySev   []SeverityCount
	TopProducts   []ProductCount
	CenterSummary []CenterSummary
}

type SeverityCount struct {
	Severity models.AlertSeverity
	Count    int64
}

type ProductCount struct {
	SKU   string
	Name  string
	Count int
}

type CenterSummary struct {
	Name          string
	Assigned      int
	ResolvedRatio float64
	Overdue       int
}

const reportTemplate = `
<html>
<body>
<h2>Warranty Operations Report</h2>
<p>{{.StartTime.Format "2006-01-02"}} &mdash; {{.EndTime.Format "2006-01-02"}}</p>

<h3>Tickets</h3>
<ul>
  <li>Open: {{.OpenTickets}}</li>
  <li>In repair: {{.InRepair}}</li>
  <li>New in period: {{.NewTickets}}</li>
</ul>

<h3>Alerts</h3>
<p>Open alerts: {{.AlertsOpen}}</p>
<table border="1" cellpadding="4">
  <tr><th>Severity</th><th>Count</th></tr>
  {{range .AlertsBySev}}<tr><td>{{.Severity}}</td><td>{{.Count}}</td></tr>{{end}}
</table>

<h3>Top Faulty Products</h3>
<table border="1" cellpadding="4">
  <tr><th>SKU</th><th>Name</th><th>Repair requests</th></tr>
  {{range .TopProducts}}<tr><td>{{.SKU}}</td><td>{{.Name}}</td><td>{{.Count}}</td></tr>{{end}}
</table>

<h3>Repair Centers</h3>
<table border="1" cellpadding="4">
  <tr><th>Center</th><th>Assigned</th><th>Resolved</th><th>Overdue</th></tr>
  {{range .CenterSummary}}<tr><td>{{.Name}}</td><td>{{.Assigned}}</td><td>{{printf "%.0f%%" (mulpct .ResolvedRatio)}}</td><td>{{.Overdue}}</td></tr>{{end}}
</table>
</body>
</html>
`

func NewGenerator(db *gorm.DB) (*Generator, error) {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"mulpct": func(ratio float64) float64 { return ratio * 100 },
	}).Parse(reportTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse report template: %v", err)
	}
	return &Generator{db: db, tmpl: tmpl}, nil
}

// Generate collects report data for the given period.
func (g *Generator) Generate(start, end time.Time) (*Data, error) {
	data := &Data{StartTime: start, EndTime: end}

	closed := []models.TicketStatus{
		models.TicketStatusResolved,
		models.TicketStatusReturnCompleted,
		models.TicketStatusCancelled,
		models.TicketStatusRejected,
	}
	if err := g.db.Model(&models.Ticket{}).Where("status NOT IN ?", closed).Count(&data.OpenTickets).Error; err != nil {
		return nil, fmt.Errorf("failed to count open tickets: %v", err)
	}
	g.db.Model(&models.Ticket{}).Where("status = ?", models.TicketStatusInRepair).Count(&data.InRepair)
	g.db.Model(&models.Ticket{}).Where("created_at >= ? AND created_at < ?", start, end).Count(&data.NewTickets)
	g.db.Model(&models.Alert{}).Where("status = ?", models.AlertStatusOpen).Count(&data.AlertsOpen)

	for _, sev := range []models.AlertSeverity{models.AlertSeverityHigh, models.AlertSeverityMedium, models.AlertSeverityLow} {
		var count int64
		g.db.Model(&models.Alert{}).
			Where("severity = ? AND created_at >= ? AND created_at < ?", sev, start, end).
			Count(&count)
		data.AlertsBySev = append(data.AlertsBySev, SeverityCount{Severity: sev, Count: count})
	}

	var repairTickets []models.Ticket
	if err := g.db.Preload("Product").
		Where("ticket_type = ? AND created_at >= ? AND created_at < ?", models.TicketTypeRepair, start, end).
		Find(&repairTickets).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch repair tickets: %v", err)
	}
	productCounts := make(map[uint]*ProductCount)
	for _, t := range repairTickets {
		p, ok := productCounts[t.ProductID]
		if !ok {
			p = &ProductCount{SKU: t.Product.SKU, Name: t.Product.Name}
			productCounts[t.ProductID] = p
		}
		p.Count++
	}
	for _, p := range productCounts {
		data.TopProducts = append(data.TopProducts, *p)
	}
	sort.Slice(data.TopProducts, func(i, j int) bool { return data.TopProducts[i].Count > data.TopProducts[j].Count })
	if len(data.TopProducts) > 5 {
		data.TopProducts = data.TopProducts[:5]
	}

	var centers []models.RepairCenter
	if err := g.db.Find(&centers).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch repair centers: %v", err)
	}
	var centerTickets []models.Ticket
	if err := g.db.Where("repair_center_id IS NOT NULL").Find(&centerTickets).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch center tickets: %v", err)
	}
	overdueCutoff := end.AddDate(0, 0, -10)
	for _, center := range centers {
		summary := CenterSummary{Name: center.Name}
		resolved := 0
		for _, t := range centerTickets {
			if t.RepairCenterID == nil || *t.RepairCenterID != center.ID {
				continue
			}
			summary.Assigned++
			if t.Status.IsTerminalSuccess() {
				resolved++
			}
			if t.Status == models.TicketStatusInRepair && t.UpdatedAt.Before(overdueCutoff) {
				summary.Overdue++
			}
		}
		if summary.Assigned > 0 {
			summary.ResolvedRatio = float64(resolved) / float64(summary.Assigned)
		}
		data.CenterSummary = append(data.CenterSummary, summary)
	}

	return data, nil
}

// Render produces the HTML body for a report.
func (g *Generator) Render(data *Data) ([]byte, error) {
	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render report: %v", err)
	}
	return buf.Bytes(), nil
}

// MailConfig holds SMTP delivery settings for reports.
type MailConfig struct {
	Host     string
	Port     int
	From     string
	Password string
}

// Send generates, renders, and emails the report for the period ending now.
func (g *Generator) Send(cfg MailConfig, recipients []string, period time.Duration) error {
	end := time.Now()
	data, err := g.Generate(end.Add(-period), end)
	if err != nil {
		return err
	}

	body, err := g.Render(data)
	if err != nil {
		return err
	}

	msg := email.NewEmail()
	msg.From = cfg.From
	msg.To = recipients
	msg.Subject = fmt.Sprintf("Warranty Operations Report %s", end.Format("2006-01-02"))
	msg.HTML = body

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return msg.Send(addr, smtp.PlainAuth("", cfg.From, cfg.Password, cfg.Host))
}
