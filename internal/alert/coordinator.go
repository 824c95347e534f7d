package alert

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/warrantyeye/internal/models"
	"gorm.io/gorm"
)

type ApplyResult string

const (
	ApplyCreated   ApplyResult = "created"
	ApplyUpdated   ApplyResult = "updated"
	ApplyUnchanged ApplyResult = "unchanged"
)

// Coordinator owns the upsert/dedup step between detector findings and the
// alert store. Writes for a correlating key are serialized through a per-key
// lock, and the store's partial unique index backstops concurrent passes.
type Coordinator struct {
	db    *gorm.DB
	mutex sync.Mutex
	locks map[string]*sync.Mutex
}

func NewCoordinator(db *gorm.DB) *Coordinator {
	return &Coordinator{
		db:    db,
		locks: make(map[string]*sync.Mutex),
	}
}

// Apply reconciles one finding against the store: create a new OPEN alert,
// update a materially changed open one in place, or leave it untouched.
// RESOLVED and ACKNOWLEDGED alerts are never matched, so a fresh breach after
// resolution creates a new record.
func (c *Coordinator) Apply(finding Finding) (ApplyResult, *models.Alert, error) {
	lock := c.keyLock(finding)
	lock.Lock()
	defer lock.Unlock()

	result, alert, err := c.apply(finding)
	if err == nil {
		return result, alert, nil
	}

	// A conflict means another writer created the open alert between our
	// lookup and insert; re-reading resolves it to the update/unchanged path.
	return c.apply(finding)
}

func (c *Coordinator) apply(finding Finding) (ApplyResult, *models.Alert, error) {
	var existing models.Alert
	err := c.db.Where("type = ? AND correlating_key = ? AND status = ?",
		finding.Type, finding.Key, models.AlertStatusOpen).First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		alert := models.Alert{
			Type:           finding.Type,
			CorrelatingKey: finding.Key,
			Severity:       finding.Severity,
			Title:          finding.Title,
			Description:    finding.Description,
			ProductID:      finding.ProductID,
			TicketID:       finding.TicketID,
			RepairCenterID: finding.RepairCenterID,
			MetricValue:    finding.Metric,
			Threshold:      finding.Threshold,
			Status:         models.AlertStatusOpen,
		}
		if err := c.db.Create(&alert).Error; err != nil {
			return "", nil, fmt.Errorf("failed to create alert: %v", err)
		}
		return ApplyCreated, &alert, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to look up open alert: %v", err)
	}

	if !materialChange(finding.Type, existing.MetricValue, finding.Metric) {
		return ApplyUnchanged, &existing, nil
	}

	existing.MetricValue = finding.Metric
	existing.Severity = finding.Severity
	existing.Description = finding.Description
	if err := c.db.Model(&existing).Updates(map[string]interface{}{
		"metric_value": existing.MetricValue,
		"severity":     existing.Severity,
		"description":  existing.Description,
	}).Error; err != nil {
		return "", nil, fmt.Errorf("failed to update alert: %v", err)
	}
	return ApplyUpdated, &existing, nil
}

// materialChange applies the per-rule materiality delta: count metrics must
// move by more than 2 (3 for the warranty spike) to be worth rewriting. The
// two ratio rules are set-once and never refreshed in place.
func materialChange(ruleType models.AlertType, stored, current float64) bool {
	switch ruleType {
	case models.AlertTypeHighReturnRate, models.AlertTypeCenterUnderperformance:
		return false
	case models.AlertTypeOutOfWarrantySpike:
		return math.Abs(stored-current) > 3
	default:
		return math.Abs(stored-current) > 2
	}
}

func (c *Coordinator) keyLock(finding Finding) *sync.Mutex {
	key := string(finding.Type) + "|" + finding.Key
	c.mutex.Lock()
	defer c.mutex.Unlock()
	lock, ok := c.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[key] = lock
	}
	return lock
}
