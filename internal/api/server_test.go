package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/warrantyeye/internal/alert"
	"github.com/warrantyeye/internal/auth"
	"github.com/warrantyeye/internal/database"
	"github.com/warrantyeye/internal/models"
	"github.com/warrantyeye/internal/settings"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)

	dir, err := os.MkdirTemp("", "warrantyeye-api-test")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp dir: %v\n", err)
		os.Exit(1)
	}
	if err := database.Initialize(filepath.Join(dir, "test.db")); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize database: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	database.Close()
	os.RemoveAll(dir)
	os.Exit(code)
}

// The database singleton is shared across tests in this package, so each
// test starts from empty tables.
func resetDB(t *testing.T) {
	t.Helper()
	db := database.GetDB()
	for _, model := range []interface{}{
		&models.Alert{}, &models.Ticket{}, &models.Product{},
		&models.RepairCenter{}, &models.ManagerSetting{}, &models.User{},
	} {
		if err := db.Unscoped().Where("1 = 1").Delete(model).Error; err != nil {
			t.Fatalf("failed to reset table: %v", err)
		}
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	resetDB(t)
	db := database.GetDB()
	store := settings.NewStore(db)
	manager := alert.NewManager(db, nil)
	evaluator := alert.NewEvaluator(db, store, alert.NewCoordinator(db), nil)
	return NewServer(manager, evaluator, store)
}

func seedUser(t *testing.T, username string, role models.Role) (*models.User, string) {
	t.Helper()
	user := models.User{
		Username: username,
		Role:     role,
		Email:    username + "@example.com",
		IsActive: true,
	}
	if err := user.SetPassword("hunter2!"); err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	if err := database.GetDB().Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	token, err := auth.GenerateToken(&user)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return &user, token
}

func doRequest(t *testing.T, server *Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)
	return w
}

func TestLogin(t *testing.T) {
	server := newTestServer(t)
	seedUser(t, "alice", models.RoleStaffManager)

	w := doRequest(t, server, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"username": "alice", "password": "hunter2!"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["token"] == "" {
		t.Fatal("expected a token")
	}

	w = doRequest(t, server, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"username": "alice", "password": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", w.Code)
	}
}

func TestAlertsRequireAuthentication(t *testing.T) {
	server := newTestServer(t)

	if w := doRequest(t, server, http.MethodGet, "/api/v1/alerts", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w := doRequest(t, server, http.MethodGet, "/api/v1/alerts", "garbage", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", w.Code)
	}
}

func TestAlertsForbiddenBelowManager(t *testing.T) {
	server := newTestServer(t)

	for _, role := range []models.Role{models.RoleCustomer, models.RoleStaff} {
		_, token := seedUser(t, "user-"+string(role), role)
		if w := doRequest(t, server, http.MethodGet, "/api/v1/alerts", token, nil); w.Code != http.StatusForbidden {
			t.Fatalf("role %s: expected 403, got %d", role, w.Code)
		}
	}
}

func TestInactiveUserRejected(t *testing.T) {
	server := newTestServer(t)
	user, token := seedUser(t, "ghost", models.RoleStaffManager)
	if err := database.GetDB().Model(user).Update("is_active", false).Error; err != nil {
		t.Fatalf("failed to deactivate user: %v", err)
	}

	if w := doRequest(t, server, http.MethodGet, "/api/v1/alerts", token, nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for inactive user, got %d", w.Code)
	}
}

func TestListAlertsWithFilter(t *testing.T) {
	server := newTestServer(t)
	_, token := seedUser(t, "bob", models.RoleStaffManager)

	db := database.GetDB()
	for i, severity := range []models.AlertSeverity{models.AlertSeverityHigh, models.AlertSeverityLow} {
		a := models.Alert{
			Type:           models.AlertTypeHighFaultRate,
			CorrelatingKey: fmt.Sprintf("product:%d", i+1),
			Severity:       severity,
			Status:         models.AlertStatusOpen,
		}
		if err := db.Create(&a).Error; err != nil {
			t.Fatalf("failed to seed alert: %v", err)
		}
	}

	w := doRequest(t, server, http.MethodGet, "/api/v1/alerts?severity=HIGH", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var alerts []models.Alert
	if err := json.Unmarshal(w.Body.Bytes(), &alerts); err != nil {
		t.Fatalf("failed to decode alerts: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected 1 HIGH alert, got %d", len(alerts))
	}
}

func TestAcknowledgeResolveFlow(t *testing.T) {
	server := newTestServer(t)
	_, token := seedUser(t, "carol", models.RoleStaffManager)

	db := database.GetDB()
	seeded := models.Alert{
		Type:           models.AlertTypeDelayedRepairs,
		CorrelatingKey: "ticket:42",
		Severity:       models.AlertSeverityHigh,
		Status:         models.AlertStatusOpen,
	}
	if err := db.Create(&seeded).Error; err != nil {
		t.Fatalf("failed to seed alert: %v", err)
	}
	base := fmt.Sprintf("/api/v1/alerts/%d", seeded.ID)

	w := doRequest(t, server, http.MethodPut, base+"/acknowledge", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("acknowledge: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var acked models.Alert
	if err := json.Unmarshal(w.Body.Bytes(), &acked); err != nil {
		t.Fatalf("failed to decode alert: %v", err)
	}
	if acked.Status != models.AlertStatusAcknowledged {
		t.Fatalf("expected ACKNOWLEDGED, got %s", acked.Status)
	}
	if acked.AcknowledgedBy != "carol" {
		t.Fatalf("expected audit user carol, got %q", acked.AcknowledgedBy)
	}

	w = doRequest(t, server, http.MethodPut, base+"/resolve", token,
		map[string]string{"resolution_note": "restocked part"})
	if w.Code != http.StatusOK {
		t.Fatalf("resolve: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resolved models.Alert
	if err := json.Unmarshal(w.Body.Bytes(), &resolved); err != nil {
		t.Fatalf("failed to decode alert: %v", err)
	}
	if resolved.Status != models.AlertStatusResolved || resolved.ResolutionNote != "restocked part" {
		t.Fatalf("unexpected resolved alert: %+v", resolved)
	}

	// RESOLVED is terminal.
	if w := doRequest(t, server, http.MethodPut, base+"/resolve", token, nil); w.Code != http.StatusConflict {
		t.Fatalf("second resolve: expected 409, got %d", w.Code)
	}
	if w := doRequest(t, server, http.MethodPut, base+"/acknowledge", token, nil); w.Code != http.StatusConflict {
		t.Fatalf("acknowledge resolved: expected 409, got %d", w.Code)
	}

	if w := doRequest(t, server, http.MethodPut, "/api/v1/alerts/999/acknowledge", token, nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown alert: expected 404, got %d", w.Code)
	}
	if w := doRequest(t, server, http.MethodPut, "/api/v1/alerts/abc/acknowledge", token, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id: expected 400, got %d", w.Code)
	}
}

func TestSettingsEndpoints(t *testing.T) {
	server := newTestServer(t)
	_, managerToken := seedUser(t, "dave", models.RoleStaffManager)
	_, adminToken := seedUser(t, "erin", models.RoleAdmin)

	// No configuration record yet.
	if w := doRequest(t, server, http.MethodGet, "/api/v1/settings", managerToken, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without config, got %d", w.Code)
	}

	cfg := settings.DefaultConfig()
	cfg.Thresholds.FaultyRequestsPerProduct = 15

	// Writing settings is admin-only.
	if w := doRequest(t, server, http.MethodPut, "/api/v1/settings", managerToken, cfg); w.Code != http.StatusForbidden {
		t.Fatalf("manager write: expected 403, got %d", w.Code)
	}
	if w := doRequest(t, server, http.MethodPut, "/api/v1/settings", adminToken, cfg); w.Code != http.StatusOK {
		t.Fatalf("admin write: expected 200, got %d", w.Code)
	}

	w := doRequest(t, server, http.MethodGet, "/api/v1/settings", managerToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var loaded settings.Config
	if err := json.Unmarshal(w.Body.Bytes(), &loaded); err != nil {
		t.Fatalf("failed to decode config: %v", err)
	}
	if loaded.Thresholds.FaultyRequestsPerProduct != 15 {
		t.Fatalf("expected threshold 15, got %d", loaded.Thresholds.FaultyRequestsPerProduct)
	}

	// Invalid values are rejected at the door.
	cfg.Windows.FaultRateDays = -1
	if w := doRequest(t, server, http.MethodPut, "/api/v1/settings", adminToken, cfg); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid config: expected 400, got %d", w.Code)
	}
}

func TestTriggerEvaluation(t *testing.T) {
	server := newTestServer(t)
	_, token := seedUser(t, "frank", models.RoleStaffManager)

	// No configuration: the pass must refuse to run.
	if w := doRequest(t, server, http.MethodPost, "/api/v1/evaluate", token, nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without config, got %d", w.Code)
	}

	db := database.GetDB()
	if err := settings.NewStore(db).SeedDefault(); err != nil {
		t.Fatalf("failed to seed settings: %v", err)
	}
	product := models.Product{SKU: "SKU-1", Name: "Widget"}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("failed to seed product: %v", err)
	}
	for i := 0; i < 12; i++ {
		ticket := models.Ticket{
			TicketNumber: fmt.Sprintf("T-%d", i),
			TicketType:   models.TicketTypeRepair,
			Status:       models.TicketStatusOpen,
			ProductID:    product.ID,
		}
		if err := db.Create(&ticket).Error; err != nil {
			t.Fatalf("failed to seed ticket: %v", err)
		}
	}

	w := doRequest(t, server, http.MethodPost, "/api/v1/evaluate", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["created"] != 1 {
		t.Fatalf("expected 1 created alert, got %d", resp["created"])
	}
}
