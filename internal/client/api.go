package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// APIError is returned when the serving API answers with a non-2xx status.
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d) %s: %s", e.StatusCode, e.Endpoint, e.Message)
}

// API talks to the serving layer.
type API struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPI creates an API client for baseURL, e.g. http://localhost:3001/api.
// A nil httpClient gets a client with a 30 second timeout.
func NewAPI(baseURL string, httpClient *http.Client) *API {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &API{baseURL: strings.TrimSuffix(baseURL, "/"), httpClient: httpClient}
}

// FetchJSON GETs endpoint and decodes the JSON body into v.
func (a *API) FetchJSON(ctx context.Context, endpoint string, v any) error {
	body, err := a.get(ctx, endpoint)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

// FetchText GETs endpoint and returns the body as text.
func (a *API) FetchText(ctx context.Context, endpoint string) (string, error) {
	body, err := a.get(ctx, endpoint)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (a *API) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := resp.Status
		if body, err := io.ReadAll(resp.Body); err == nil && len(body) > 0 {
			msg = strings.TrimSpace(string(body))
		}
		return nil, &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: msg}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", endpoint, err)
	}
	return body, nil
}
