package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/warrantyeye/internal/models"
	"github.com/warrantyeye/internal/settings"
)

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient builds a client from WARRANTYEYE_API_URL and WARRANTYEYE_TOKEN.
// Login works without a token; everything else requires one.
func NewClient() *Client {
	baseURL := os.Getenv("WARRANTYEYE_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	return &Client{
		baseURL: baseURL,
		token:   os.Getenv("WARRANTYEYE_TOKEN"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Login exchanges credentials for a JWT.
func (c *Client) Login(username, password string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	data := map[string]string{"username": username, "password": password}
	if err := c.do(http.MethodPost, "/api/v1/auth/login", data, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

func (c *Client) ListAlerts(status, alertType, severity string) ([]models.Alert, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}
	if alertType != "" {
		query.Set("type", alertType)
	}
	if severity != "" {
		query.Set("severity", severity)
	}

	var alerts []models.Alert
	if err := c.do(http.MethodGet, "/api/v1/alerts?"+query.Encode(), nil, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

func (c *Client) AcknowledgeAlert(alertID uint) (*models.Alert, error) {
	var alert models.Alert
	if err := c.do(http.MethodPut, fmt.Sprintf("/api/v1/alerts/%d/acknowledge", alertID), nil, &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}

func (c *Client) ResolveAlert(alertID uint, note string) (*models.Alert, error) {
	data := map[string]string{"resolution_note": note}
	var alert models.Alert
	if err := c.do(http.MethodPut, fmt.Sprintf("/api/v1/alerts/%d/resolve", alertID), data, &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}

func (c *Client) GetSettings() (*settings.Config, error) {
	var cfg settings.Config
	if err := c.do(http.MethodGet, "/api/v1/settings", nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Client) UpdateSettings(cfg settings.Config) error {
	return c.do(http.MethodPut, "/api/v1/settings", cfg, nil)
}

// Evaluate triggers an evaluation pass and returns the pass summary.
func (c *Client) Evaluate() (map[string]int, error) {
	var result map[string]int
	if err := c.do(http.MethodPost, "/api/v1/evaluate", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) do(method, endpoint string, data, v interface{}) error {
	var body io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %v", err)
		}
		body = bytes.NewReader(jsonData)
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %v", err)
	}
	parts, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %v", err)
	}
	u.Path = path.Join(u.Path, parts.Path)
	u.RawQuery = parts.RawQuery

	req, err := http.NewRequest(method, u.String(), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("API error: %s", errResp.Error)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	if v != nil {
		return json.NewDecoder(resp.Body).Decode(v)
	}
	return nil
}
