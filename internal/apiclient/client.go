// Package apiclient is a typed HTTP client for the cardiopredict API,
// used by the retrain CLI to drive a running server.
package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/minhvu-dev/cardiopredict/internal/models"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
	retry      RetryConfig
}

func NewClient(baseURL string, logger *logrus.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 600 * time.Second, // Retrains can run for minutes
		},
		logger: logger,
		retry:  DefaultRetryConfig(),
	}
}

// SetRetryConfig overrides the default backoff, mainly for tests.
func (c *Client) SetRetryConfig(config RetryConfig) {
	c.retry = config
}

// apiEnvelope matches the server's response wrapper.
type apiEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (c *Client) TrainingStats() (*models.CombinedTrainingStats, error) {
	var stats models.CombinedTrainingStats
	err := c.makeRequest("GET", "/api/v1/training/stats", nil, &stats)
	return &stats, err
}

func (c *Client) SpaceStats(space string) (*models.TrainingStats, error) {
	var stats models.TrainingStats
	err := c.makeRequest("GET", "/api/v1/examinations/"+space+"/stats", nil, &stats)
	return &stats, err
}

func (c *Client) Retrain(space string, force bool) (*models.RetrainReport, error) {
	endpoint := "/api/v1/training/retrain/" + space
	if force {
		endpoint += "?force=true"
	}
	var report models.RetrainReport
	err := c.makeRequest("POST", endpoint, nil, &report)
	return &report, err
}

// Health hits the unenveloped health endpoint.
func (c *Client) Health() (*models.HealthResponse, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/health")
	if err != nil {
		return nil, fmt.Errorf("health request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var health models.HealthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return nil, fmt.Errorf("failed to unmarshal health response: %w", err)
	}
	return &health, nil
}

func (c *Client) makeRequest(method, endpoint string, payload interface{}, result interface{}) error {
	requestURL := c.baseURL + endpoint
	if _, err := url.Parse(requestURL); err != nil {
		return fmt.Errorf("invalid request URL: %w", err)
	}

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, requestURL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.WithFields(logrus.Fields{
		"method": method,
		"url":    requestURL,
	}).Debug("Making API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"status_code":   resp.StatusCode,
		"method":        method,
		"url":           requestURL,
		"response_size": len(responseBody),
	}).Debug("API response received")

	var envelope apiEnvelope
	if err := json.Unmarshal(responseBody, &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !envelope.Success {
		message := envelope.Error
		if message == "" {
			message = envelope.Message
		}
		return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, message)
	}

	if result != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, result); err != nil {
			return fmt.Errorf("failed to unmarshal response data: %w", err)
		}
	}
	return nil
}
