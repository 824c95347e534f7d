package alert

import (
	"fmt"
	"time"

	"github.com/warrantyeye/internal/models"
	"github.com/warrantyeye/internal/settings"
)

// Finding is a candidate alert emitted by a detector rule, before the
// coordinator decides whether it creates, updates, or suppresses.
type Finding struct {
	Type           models.AlertType
	Key            string
	Severity       models.AlertSeverity
	Title          string
	Description    string
	ProductID      *uint
	TicketID       *uint
	RepairCenterID *uint
	Metric         float64
	Threshold      float64
}

// Correlating key constructors. A key scopes the at-most-one-OPEN-alert
// invariant: product for product rules, ticket for staleness, center for
// center rules, serial for duplicate claims, and a singleton for the
// warranty spike.
func ProductKey(id uint) string      { return fmt.Sprintf("product:%d", id) }
func TicketKey(id uint) string       { return fmt.Sprintf("ticket:%d", id) }
func CenterKey(id uint) string       { return fmt.Sprintf("center:%d", id) }
func SerialKey(serial string) string { return "serial:" + serial }

const GlobalKey = "global"

// windowStart gives the inclusive lower bound of an N-day lookback window.
func windowStart(now time.Time, days int) time.Time {
	return now.AddDate(0, 0, -days)
}

func daysSince(now, t time.Time) int {
	return int(now.Sub(t).Hours() / 24)
}

// DetectHighFaultRate flags products with too many repair requests inside the
// fault-rate window. Severity escalates to HIGH at twice the threshold.
func DetectHighFaultRate(tickets []models.Ticket, cfg settings.Config, now time.Time) []Finding {
	cutoff := windowStart(now, cfg.Windows.FaultRateDays)
	threshold := cfg.Thresholds.FaultyRequestsPerProduct

	counts := make(map[uint]int)
	products := make(map[uint]models.Product)
	for _, t := range tickets {
		if t.TicketType != models.TicketTypeRepair || t.CreatedAt.Before(cutoff) {
			continue
		}
		counts[t.ProductID]++
		products[t.ProductID] = t.Product
	}

	var findings []Finding
	for productID, count := range counts {
		if count < threshold {
			continue
		}
		severity := models.AlertSeverityMedium
		if count >= threshold*2 {
			severity = models.AlertSeverityHigh
		}
		id := productID
		findings = append(findings, Finding{
			Type:        models.AlertTypeHighFaultRate,
			Key:         ProductKey(productID),
			Severity:    severity,
			Title:       fmt.Sprintf("High Fault Rate: %s", products[productID].SKU),
			Description: fmt.Sprintf("%d faulty requests in last %d days", count, cfg.Windows.FaultRateDays),
			ProductID:   &id,
			Metric:      float64(count),
			Threshold:   float64(threshold),
		})
	}
	return findings
}

// DetectDelayedRepairs flags tickets sitting in repair with no update for
// longer than the delay window. This is a point-in-time staleness check, not
// a creation-window scan.
func DetectDelayedRepairs(tickets []models.Ticket, cfg settings.Config, now time.Time) []Finding {
	cutoff := windowStart(now, cfg.Windows.DelayedRepairDays)

	var findings []Finding
	for _, t := range tickets {
		if t.Status != models.TicketStatusInRepair || !t.UpdatedAt.Before(cutoff) {
			continue
		}
		stale := daysSince(now, t.UpdatedAt)
		id := t.ID
		findings = append(findings, Finding{
			Type:        models.AlertTypeDelayedRepairs,
			Key:         TicketKey(t.ID),
			Severity:    models.AlertSeverityHigh,
			Title:       fmt.Sprintf("Delayed Repair: Ticket #%s", t.TicketNumber),
			Description: fmt.Sprintf("In Repair for %d days (> %d)", stale, cfg.Windows.DelayedRepairDays),
			TicketID:    &id,
			Metric:      float64(stale),
			Threshold:   float64(cfg.Windows.DelayedRepairDays),
		})
	}
	return findings
}

// returnRateMinSample is the minimum ticket volume a product needs inside the
// window before its return rate is considered meaningful.
const returnRateMinSample = 10

// DetectHighReturnRate flags products whose return share inside the window
// meets the configured fraction, subject to the minimum sample size.
func DetectHighReturnRate(tickets []models.Ticket, cfg settings.Config, now time.Time) []Finding {
	cutoff := windowStart(now, cfg.Windows.ReturnRateDays)

	type stats struct {
		total   int
		returns int
		product models.Product
	}
	byProduct := make(map[uint]*stats)
	for _, t := range tickets {
		if t.CreatedAt.Before(cutoff) {
			continue
		}
		s, ok := byProduct[t.ProductID]
		if !ok {
			s = &stats{product: t.Product}
			byProduct[t.ProductID] = s
		}
		s.total++
		if t.TicketType == models.TicketTypeReturn {
			s.returns++
		}
	}

	var findings []Finding
	for productID, s := range byProduct {
		if s.total < returnRateMinSample {
			continue
		}
		rate := float64(s.returns) / float64(s.total)
		if rate < cfg.Thresholds.ReturnRatePercent {
			continue
		}
		id := productID
		findings = append(findings, Finding{
			Type:        models.AlertTypeHighReturnRate,
			Key:         ProductKey(productID),
			Severity:    models.AlertSeverityMedium,
			Title:       fmt.Sprintf("High Return Rate: %s", s.product.SKU),
			Description: fmt.Sprintf("%.1f%% returns in last %d days", rate*100, cfg.Windows.ReturnRateDays),
			ProductID:   &id,
			Metric:      rate,
			Threshold:   cfg.Thresholds.ReturnRatePercent,
		})
	}
	return findings
}

// DetectCenterUnderperformance flags repair centers over their entire ticket
// history: too many overdue in-repair tickets, or a resolved ratio under the
// configured floor.
func DetectCenterUnderperformance(centers []models.RepairCenter, tickets []models.Ticket, cfg settings.Config, now time.Time) []Finding {
	cutoff := windowStart(now, cfg.Windows.DelayedRepairDays)

	var findings []Finding
	for _, center := range centers {
		var total, resolved, overdue int
		for _, t := range tickets {
			if t.RepairCenterID == nil || *t.RepairCenterID != center.ID {
				continue
			}
			total++
			if t.Status.IsTerminalSuccess() {
				resolved++
			}
			if t.Status == models.TicketStatusInRepair && t.UpdatedAt.Before(cutoff) {
				overdue++
			}
		}
		if total == 0 {
			continue
		}

		ratio := float64(resolved) / float64(total)
		if overdue < cfg.Thresholds.RepairCenterOverdueCount && ratio >= cfg.Thresholds.RepairCenterResolvedRatioMin {
			continue
		}
		id := center.ID
		findings = append(findings, Finding{
			Type:           models.AlertTypeCenterUnderperformance,
			Key:            CenterKey(center.ID),
			Severity:       models.AlertSeverityHigh,
			Title:          fmt.Sprintf("Underperforming Center: %s", center.Name),
			Description:    fmt.Sprintf("Resolved %.0f%%, overdue %d", ratio*100, overdue),
			RepairCenterID: &id,
			Metric:         ratio,
			Threshold:      cfg.Thresholds.RepairCenterResolvedRatioMin,
		})
	}
	return findings
}

// DetectDuplicateSerialClaims flags serial numbers a single customer has
// claimed repeatedly inside the window. Grouping is (serial, owner) but the
// finding correlates on the serial alone.
func DetectDuplicateSerialClaims(tickets []models.Ticket, cfg settings.Config, now time.Time) []Finding {
	cutoff := windowStart(now, cfg.Windows.DuplicateSerialDays)

	type group struct {
		count  int
		serial string
		email  string
	}
	groups := make(map[string]*group)
	for _, t := range tickets {
		if t.CreatedAt.Before(cutoff) || t.SerialNumber == "" {
			continue
		}
		key := t.SerialNumber + "\x00" + t.OwnerID
		g, ok := groups[key]
		if !ok {
			g = &group{serial: t.SerialNumber, email: t.CustomerEmail}
			groups[key] = g
		}
		g.count++
	}

	var findings []Finding
	for _, g := range groups {
		if g.count < cfg.Thresholds.DuplicateSerialCount {
			continue
		}
		findings = append(findings, Finding{
			Type:        models.AlertTypeDuplicateSerialClaims,
			Key:         SerialKey(g.serial),
			Severity:    models.AlertSeverityMedium,
			Title:       fmt.Sprintf("Duplicate Serial Claims: %s", g.serial),
			Description: fmt.Sprintf("Customer %s filed %d claims in %d days", g.email, g.count, cfg.Windows.DuplicateSerialDays),
			Metric:      float64(g.count),
			Threshold:   float64(cfg.Thresholds.DuplicateSerialCount),
		})
	}
	return findings
}

// DetectOutOfWarrantySpike emits a single global finding when out-of-warranty
// requests inside the window reach the configured count.
func DetectOutOfWarrantySpike(tickets []models.Ticket, cfg settings.Config, now time.Time) []Finding {
	cutoff := windowStart(now, cfg.Windows.OutOfWarrantyDays)

	count := 0
	for _, t := range tickets {
		if !t.WarrantyEligible && !t.CreatedAt.Before(cutoff) {
			count++
		}
	}
	if count < cfg.Thresholds.OutOfWarrantySpikeCount {
		return nil
	}

	return []Finding{{
		Type:        models.AlertTypeOutOfWarrantySpike,
		Key:         GlobalKey,
		Severity:    models.AlertSeverityLow,
		Title:       "Out-of-Warranty Spike",
		Description: fmt.Sprintf("%d out-of-warranty requests in last %d days", count, cfg.Windows.OutOfWarrantyDays),
		Metric:      float64(count),
		Threshold:   float64(cfg.Thresholds.OutOfWarrantySpikeCount),
	}}
}
