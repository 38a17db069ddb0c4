// Package countries resolves ISO 3166 alpha-2 codes to country names using a
// public lookup service.
package countries

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ExternalServiceError wraps failures of the remote lookup service.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// Client fetches the code to name mapping over HTTP.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient constructs a new client.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type positionsResponse struct {
	Error bool `json:"error"`
	Data  []struct {
		Name string `json:"name"`
		ISO2 string `json:"iso2"`
	} `json:"data"`
}

// Fetch downloads the full mapping. It performs exactly one request.
func (c *Client) Fetch(ctx context.Context) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, &ExternalServiceError{Service: "countries", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ExternalServiceError{Service: "countries", Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return nil, &ExternalServiceError{Service: "countries", Err: fmt.Errorf("returned status %d", resp.StatusCode)}
	}
	var body positionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &ExternalServiceError{Service: "countries", Err: fmt.Errorf("decode: %w", err)}
	}
	if body.Error {
		return nil, &ExternalServiceError{Service: "countries", Err: errors.New("service reported an error")}
	}
	mapping := make(map[string]string, len(body.Data))
	for _, country := range body.Data {
		code := strings.TrimSpace(country.ISO2)
		name := strings.TrimSpace(country.Name)
		if code == "" || name == "" {
			continue
		}
		mapping[code] = name
	}
	return mapping, nil
}
