package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type HTTPClient struct {
	client  *http.Client
	baseURL string
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

type LoginRequest struct {
	MobileNumber string `json:"mobileNumber"`
	Password     string `json:"password"`
}

type LoginResponse struct {
	JWT      string `json:"jwt_access"`
	DriverID string `json:"driverId"`
	Error    string `json:"error"`
}

// Login exchanges driver credentials for a driver token.
func (h *HTTPClient) Login(ctx context.Context, mobile, password string) (LoginResponse, error) {
	body, err := json.Marshal(LoginRequest{MobileNumber: mobile, Password: password})
	if err != nil {
		return LoginResponse{}, fmt.Errorf("marshaling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/drivers/login", bytes.NewReader(body))
	if err != nil {
		return LoginResponse{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("reading response: %w", err)
	}

	var out LoginResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return LoginResponse{}, fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return LoginResponse{}, fmt.Errorf("login failed with status %d: %s", resp.StatusCode, out.Error)
	}
	return out, nil
}
