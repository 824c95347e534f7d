package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/warrantyeye/internal/models"
	"github.com/warrantyeye/internal/settings"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []*models.Alert
}

func (r *recordingNotifier) NotifyNew(alert *models.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

func newTestEvaluator(t *testing.T, db *gorm.DB) (*Evaluator, *recordingNotifier) {
	t.Helper()
	store := settings.NewStore(db)
	if err := store.SeedDefault(); err != nil {
		t.Fatalf("failed to seed settings: %v", err)
	}
	notifier := &recordingNotifier{}
	return NewEvaluator(db, store, NewCoordinator(db), notifier), notifier
}

func seedProduct(t *testing.T, db *gorm.DB, sku string) models.Product {
	t.Helper()
	product := models.Product{SKU: sku, Name: sku}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("failed to seed product: %v", err)
	}
	return product
}

func seedRepairTickets(t *testing.T, db *gorm.DB, productID uint, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		ticket := models.Ticket{
			TicketNumber: fmt.Sprintf("T-%d-%d", productID, i),
			TicketType:   models.TicketTypeRepair,
			Status:       models.TicketStatusOpen,
			ProductID:    productID,
		}
		if err := db.Create(&ticket).Error; err != nil {
			t.Fatalf("failed to seed ticket: %v", err)
		}
	}
}

func TestEvaluateMissingConfigurationAborts(t *testing.T) {
	db := openTestDB(t)
	// No settings record seeded.
	ev := NewEvaluator(db, settings.NewStore(db), NewCoordinator(db), nil)

	product := seedProduct(t, db, "SKU-1")
	seedRepairTickets(t, db, product.ID, 15)

	if _, err := ev.Evaluate(context.Background()); !errors.Is(err, settings.ErrConfigurationMissing) {
		t.Fatalf("expected ErrConfigurationMissing, got %v", err)
	}

	var count int64
	if err := db.Model(&models.Alert{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count alerts: %v", err)
	}
	if count != 0 {
		t.Fatalf("aborted pass must have no side effects, found %d alerts", count)
	}
}

func TestEvaluateCreatesAndNotifies(t *testing.T) {
	db := openTestDB(t)
	ev, notifier := newTestEvaluator(t, db)

	product := seedProduct(t, db, "SKU-1")
	seedRepairTickets(t, db, product.ID, 12)

	result, err := ev.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if result.Created != 1 {
		t.Fatalf("expected 1 created, got %d", result.Created)
	}
	if len(result.RuleErrors) != 0 {
		t.Fatalf("expected no rule errors, got %d", len(result.RuleErrors))
	}
	if notifier.count() != 1 {
		t.Fatalf("expected 1 notification, got %d", notifier.count())
	}

	var alert models.Alert
	if err := db.First(&alert).Error; err != nil {
		t.Fatalf("failed to read alert: %v", err)
	}
	if alert.Type != models.AlertTypeHighFaultRate {
		t.Fatalf("unexpected alert type %s", alert.Type)
	}
	if alert.CorrelatingKey != ProductKey(product.ID) {
		t.Fatalf("unexpected correlating key %s", alert.CorrelatingKey)
	}
	if alert.MetricValue != 12 {
		t.Fatalf("expected metric 12, got %v", alert.MetricValue)
	}
}

func TestEvaluateIsIdempotentAcrossPasses(t *testing.T) {
	db := openTestDB(t)
	ev, notifier := newTestEvaluator(t, db)

	product := seedProduct(t, db, "SKU-1")
	seedRepairTickets(t, db, product.ID, 12)

	if _, err := ev.Evaluate(context.Background()); err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	second, err := ev.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}

	if second.Created != 0 {
		t.Fatalf("unchanged data must create nothing, got %d", second.Created)
	}
	if second.Unchanged != 1 {
		t.Fatalf("expected 1 unchanged, got %d", second.Unchanged)
	}
	if notifier.count() != 1 {
		t.Fatalf("repeat passes must not re-notify, got %d notifications", notifier.count())
	}

	var open int64
	if err := db.Model(&models.Alert{}).Where("status = ?", models.AlertStatusOpen).Count(&open).Error; err != nil {
		t.Fatalf("failed to count open alerts: %v", err)
	}
	if open != 1 {
		t.Fatalf("expected 1 open alert across passes, got %d", open)
	}
}

func TestEvaluateMaterialGrowthUpdatesAlert(t *testing.T) {
	db := openTestDB(t)
	ev, notifier := newTestEvaluator(t, db)

	product := seedProduct(t, db, "SKU-1")
	seedRepairTickets(t, db, product.ID, 12)
	if _, err := ev.Evaluate(context.Background()); err != nil {
		t.Fatalf("first pass failed: %v", err)
	}

	// 12 -> 16 clears the materiality delta.
	for i := 0; i < 4; i++ {
		ticket := models.Ticket{
			TicketNumber: fmt.Sprintf("T-extra-%d", i),
			TicketType:   models.TicketTypeRepair,
			Status:       models.TicketStatusOpen,
			ProductID:    product.ID,
		}
		if err := db.Create(&ticket).Error; err != nil {
			t.Fatalf("failed to seed ticket: %v", err)
		}
	}

	result, err := ev.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if result.Updated != 1 {
		t.Fatalf("expected 1 updated, got %d", result.Updated)
	}
	if notifier.count() != 1 {
		t.Fatalf("updates must not notify, got %d notifications", notifier.count())
	}

	var alert models.Alert
	if err := db.First(&alert).Error; err != nil {
		t.Fatalf("failed to read alert: %v", err)
	}
	if alert.MetricValue != 16 {
		t.Fatalf("expected metric 16, got %v", alert.MetricValue)
	}
}

func TestEvaluateConditionClearedAlertStaysOpen(t *testing.T) {
	db := openTestDB(t)
	ev, _ := newTestEvaluator(t, db)

	ticket := models.Ticket{
		TicketNumber: "T-9001",
		TicketType:   models.TicketTypeRepair,
		Status:       models.TicketStatusInRepair,
	}
	if err := db.Create(&ticket).Error; err != nil {
		t.Fatalf("failed to seed ticket: %v", err)
	}
	stale := time.Now().AddDate(0, 0, -15)
	if err := db.Model(&ticket).UpdateColumn("updated_at", stale).Error; err != nil {
		t.Fatalf("failed to age ticket: %v", err)
	}

	first, err := ev.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	if first.Created != 1 {
		t.Fatalf("expected 1 created, got %d", first.Created)
	}

	// Ticket gets repaired; the rule stops firing but the alert is not
	// auto-resolved, a manager closes it.
	if err := db.Model(&ticket).Update("status", models.TicketStatusResolved).Error; err != nil {
		t.Fatalf("failed to resolve ticket: %v", err)
	}

	second, err := ev.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if second.Findings != 0 {
		t.Fatalf("expected no findings, got %d", second.Findings)
	}

	var alert models.Alert
	if err := db.First(&alert).Error; err != nil {
		t.Fatalf("failed to read alert: %v", err)
	}
	if alert.Status != models.AlertStatusOpen {
		t.Fatalf("cleared condition must not auto-resolve, got %s", alert.Status)
	}
}

func TestEvaluateReadFailureSkipsRulesNotPass(t *testing.T) {
	db := openTestDB(t)
	ev, _ := newTestEvaluator(t, db)

	if err := db.Migrator().DropTable(&models.Ticket{}); err != nil {
		t.Fatalf("failed to drop tickets table: %v", err)
	}

	result, err := ev.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("pass must survive rule read failures, got %v", err)
	}
	if len(result.RuleErrors) != 6 {
		t.Fatalf("expected all 6 rules to report read errors, got %d", len(result.RuleErrors))
	}
	if result.Findings != 0 {
		t.Fatalf("expected no findings, got %d", result.Findings)
	}
}
