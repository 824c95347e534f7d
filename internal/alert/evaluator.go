package alert

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/warrantyeye/internal/models"
	"github.com/warrantyeye/internal/settings"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// RuleError records a detector whose data read failed during a pass. The
// remaining rules still run; partial evaluation beats total failure.
type RuleError struct {
	Rule models.AlertType
	Err  error
}

// PassResult summarizes one evaluation pass.
type PassResult struct {
	Findings   int
	Created    int
	Updated    int
	Unchanged  int
	RuleErrors []RuleError
	StartedAt  time.Time
	Duration   time.Duration
}

// Notifier receives alerts the coordinator newly created. Delivery failures
// must not fail the pass.
type Notifier interface {
	NotifyNew(alert *models.Alert)
}

// Evaluator runs the six detector rules against the ticket store and funnels
// their findings through the coordinator. Rules read independently, run
// concurrently, and commit independently.
type Evaluator struct {
	db       *gorm.DB
	settings *settings.Store
	coord    *Coordinator
	notifier Notifier
	now      func() time.Time
}

func NewEvaluator(db *gorm.DB, store *settings.Store, coord *Coordinator, notifier Notifier) *Evaluator {
	return &Evaluator{
		db:       db,
		settings: store,
		coord:    coord,
		notifier: notifier,
		now:      time.Now,
	}
}

// Evaluate runs one full pass. A missing configuration aborts the pass with
// no side effects; a single rule's read failure skips only that rule.
func (e *Evaluator) Evaluate(ctx context.Context) (*PassResult, error) {
	cfg, err := e.settings.Load()
	if err != nil {
		return nil, err
	}

	now := e.now()
	result := &PassResult{StartedAt: now}

	rules := []struct {
		typ models.AlertType
		run func() ([]Finding, error)
	}{
		{models.AlertTypeHighFaultRate, func() ([]Finding, error) { return e.runHighFaultRate(cfg, now) }},
		{models.AlertTypeDelayedRepairs, func() ([]Finding, error) { return e.runDelayedRepairs(cfg, now) }},
		{models.AlertTypeHighReturnRate, func() ([]Finding, error) { return e.runHighReturnRate(cfg, now) }},
		{models.AlertTypeCenterUnderperformance, func() ([]Finding, error) { return e.runCenterUnderperformance(cfg, now) }},
		{models.AlertTypeDuplicateSerialClaims, func() ([]Finding, error) { return e.runDuplicateSerialClaims(cfg, now) }},
		{models.AlertTypeOutOfWarrantySpike, func() ([]Finding, error) { return e.runOutOfWarrantySpike(cfg, now) }},
	}

	var mu sync.Mutex
	g, _ := errgroup.WithContext(ctx)
	for _, rule := range rules {
		rule := rule
		g.Go(func() error {
			findings, err := rule.run()
			if err != nil {
				log.Printf("rule %s: data read failed, skipping this pass: %v", rule.typ, err)
				mu.Lock()
				result.RuleErrors = append(result.RuleErrors, RuleError{Rule: rule.typ, Err: err})
				mu.Unlock()
				return nil
			}

			for _, finding := range findings {
				applied, alert, err := e.coord.Apply(finding)
				if err != nil {
					log.Printf("rule %s: failed to apply finding %s: %v", rule.typ, finding.Key, err)
					mu.Lock()
					result.RuleErrors = append(result.RuleErrors, RuleError{Rule: rule.typ, Err: err})
					mu.Unlock()
					continue
				}

				mu.Lock()
				result.Findings++
				switch applied {
				case ApplyCreated:
					result.Created++
				case ApplyUpdated:
					result.Updated++
				case ApplyUnchanged:
					result.Unchanged++
				}
				mu.Unlock()

				if applied == ApplyCreated && e.notifier != nil {
					e.notifier.NotifyNew(alert)
				}
			}
			return nil
		})
	}
	g.Wait()

	result.Duration = e.now().Sub(now)
	log.Printf("evaluation pass done: %d findings (%d created, %d updated, %d unchanged), %d rule errors, took %s",
		result.Findings, result.Created, result.Updated, result.Unchanged, len(result.RuleErrors), result.Duration)
	return result, nil
}

// Per-rule reads. Each rule fetches its own scoped snapshot so a failing
// read only takes out that rule, and each exact filter lives in the pure
// detector it feeds.

func (e *Evaluator) runHighFaultRate(cfg settings.Config, now time.Time) ([]Finding, error) {
	var tickets []models.Ticket
	cutoff := now.AddDate(0, 0, -cfg.Windows.FaultRateDays)
	if err := e.db.Preload("Product").
		Where("ticket_type = ? AND created_at >= ?", models.TicketTypeRepair, cutoff).
		Find(&tickets).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch repair tickets: %v", err)
	}
	return DetectHighFaultRate(tickets, cfg, now), nil
}

func (e *Evaluator) runDelayedRepairs(cfg settings.Config, now time.Time) ([]Finding, error) {
	var tickets []models.Ticket
	cutoff := now.AddDate(0, 0, -cfg.Windows.DelayedRepairDays)
	if err := e.db.
		Where("status = ? AND updated_at < ?", models.TicketStatusInRepair, cutoff).
		Find(&tickets).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch in-repair tickets: %v", err)
	}
	return DetectDelayedRepairs(tickets, cfg, now), nil
}

func (e *Evaluator) runHighReturnRate(cfg settings.Config, now time.Time) ([]Finding, error) {
	var tickets []models.Ticket
	cutoff := now.AddDate(0, 0, -cfg.Windows.ReturnRateDays)
	if err := e.db.Preload("Product").
		Where("created_at >= ?", cutoff).
		Find(&tickets).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch tickets for return rate: %v", err)
	}
	return DetectHighReturnRate(tickets, cfg, now), nil
}

func (e *Evaluator) runCenterUnderperformance(cfg settings.Config, now time.Time) ([]Finding, error) {
	var centers []models.RepairCenter
	if err := e.db.Find(&centers).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch repair centers: %v", err)
	}

	var tickets []models.Ticket
	if err := e.db.Where("repair_center_id IS NOT NULL").Find(&tickets).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch center tickets: %v", err)
	}
	return DetectCenterUnderperformance(centers, tickets, cfg, now), nil
}

func (e *Evaluator) runDuplicateSerialClaims(cfg settings.Config, now time.Time) ([]Finding, error) {
	var tickets []models.Ticket
	cutoff := now.AddDate(0, 0, -cfg.Windows.DuplicateSerialDays)
	if err := e.db.Where("created_at >= ?", cutoff).Find(&tickets).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch tickets for duplicate claims: %v", err)
	}
	return DetectDuplicateSerialClaims(tickets, cfg, now), nil
}

func (e *Evaluator) runOutOfWarrantySpike(cfg settings.Config, now time.Time) ([]Finding, error) {
	var tickets []models.Ticket
	cutoff := now.AddDate(0, 0, -cfg.Windows.OutOfWarrantyDays)
	if err := e.db.
		Where("warranty_eligible = ? AND created_at >= ?", false, cutoff).
		Find(&tickets).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch out-of-warranty tickets: %v", err)
	}
	return DetectOutOfWarrantySpike(tickets, cfg, now), nil
}
