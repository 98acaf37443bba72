package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fleet-dash/internal/live-sync-service/core/domain/dto"
	"fleet-dash/internal/live-sync-service/core/domain/model"
	"fleet-dash/internal/live-sync-service/core/myerrors"
	"fleet-dash/internal/mylogger"
)

const (
	msgFetchFailed    = "Failed to fetch drivers."
	msgRegisterFailed = "Failed to add driver."
	msgRemoveFailed   = "Failed to remove the driver."
)

// Client talks to the driver registry over HTTP. It never retries.
type Client struct {
	baseURL string
	token   func() string
	client  *http.Client
	log     mylogger.Logger
}

// NewClient takes the registry base URL including the API prefix. token is read on every call
// and may return "" when no token is available.
func NewClient(baseURL string, timeout time.Duration, token func() string, log mylogger.Logger) *Client {
	if token == nil {
		token = func() string { return "" }
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
		log:     log.Action("registry"),
	}
}

func (c *Client) ListDrivers(ctx context.Context) ([]model.DriverRecord, error) {
	const op = "list drivers"
	body, status, err := c.do(ctx, http.MethodGet, "/drivers/all/driver", nil)
	if err != nil {
		return nil, transportError(op, msgFetchFailed, err)
	}
	if status/100 != 2 {
		return nil, statusError(op, status, body, msgFetchFailed)
	}

	records, skipped, err := dto.DecodeDriverList(body)
	if err != nil {
		return nil, &myerrors.RegistryError{Op: op, Status: status, Message: msgFetchFailed, Err: err}
	}
	if skipped > 0 {
		c.log.Warn("skipped malformed driver records", "skipped", skipped)
	}
	return records, nil
}

func (c *Client) RegisterDriver(ctx context.Context, form model.RegistrationForm, at model.Coordinate) (model.DriverRecord, error) {
	const op = "register driver"
	body, status, err := c.do(ctx, http.MethodPost, "/drivers/register/driver", dto.NewRegisterRequest(form, at))
	if err != nil {
		return model.DriverRecord{}, transportError(op, msgRegisterFailed, err)
	}
	if status/100 != 2 {
		return model.DriverRecord{}, statusError(op, status, body, msgRegisterFailed)
	}

	rec, err := dto.DecodeDriver(body)
	if err != nil {
		return model.DriverRecord{}, &myerrors.RegistryError{Op: op, Status: status, Message: msgRegisterFailed, Err: err}
	}
	return rec, nil
}

// RemoveDriver treats 404 as success: the driver is already gone.
func (c *Client) RemoveDriver(ctx context.Context, id string) error {
	const op = "remove driver"
	body, status, err := c.do(ctx, http.MethodDelete, "/drivers/remove/"+url.PathEscape(id), nil)
	if err != nil {
		return transportError(op, msgRemoveFailed, err)
	}
	if status == http.StatusNotFound {
		c.log.Debug("driver already removed", "driver_id", id)
		return nil
	}
	if status/100 != 2 {
		return statusError(op, status, body, msgRemoveFailed)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("marshaling request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}
	c.log.Debug("registry call", "method", method, "path", path, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())
	return data, resp.StatusCode, nil
}

func transportError(op, message string, err error) error {
	return &myerrors.RegistryError{Op: op, Message: message, Err: err}
}

// statusError prefers the server's own message or error field over the default text.
func statusError(op string, status int, body []byte, fallback string) error {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := fallback
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Message != "":
			msg = payload.Message
		case payload.Error != "":
			msg = payload.Error
		}
	}
	return &myerrors.RegistryError{Op: op, Status: status, Message: msg}
}
