package registrar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/FlowPagesHQ/FlowPages/internal/pkg/env"
)

const defaultAPIBaseURL = "https://api.registrar.example.com/v1"

// HTTPClient talks to the registrar reseller API over REST.
type HTTPClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewHTTPClientFromEnv builds a registrar client from environment settings.
func NewHTTPClientFromEnv() *HTTPClient {
	return &HTTPClient{
		BaseURL: strings.TrimRight(env.GetEnv("REGISTRAR_API_BASE_URL", defaultAPIBaseURL), "/"),
		APIKey:  strings.TrimSpace(env.GetEnv("REGISTRAR_API_KEY", "")),
		HTTPClient: &http.Client{
			Timeout: env.GetEnvDuration("REGISTRAR_TIMEOUT", 15*time.Second),
		},
	}
}

func (c *HTTPClient) CheckAvailability(ctx context.Context, domain string) (*Availability, error) {
	var out Availability
	q := url.Values{"domain": {domain}}
	if err := c.doJSON(ctx, http.MethodGet, "/domains/availability?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CheckTransferable(ctx context.Context, domain string) (*Transferability, error) {
	var out Transferability
	q := url.Values{"domain": {domain}}
	if err := c.doJSON(ctx, http.MethodGet, "/transfers/eligibility?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) SubmitTransfer(ctx context.Context, in SubmitTransferInput) (*TransferOrder, error) {
	var out TransferOrder
	if err := c.doJSON(ctx, http.MethodPost, "/transfers", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetTransferOrder(ctx context.Context, orderID string) (*TransferOrder, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, errors.New("order id is required")
	}
	var out TransferOrder
	if err := c.doJSON(ctx, http.MethodGet, "/transfers/"+url.PathEscape(orderID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetPricing(ctx context.Context, tld string) (*Pricing, error) {
	var out Pricing
	if err := c.doJSON(ctx, http.MethodGet, "/pricing/"+url.PathEscape(tld), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ListPricing(ctx context.Context) ([]Pricing, error) {
	var out []Pricing
	if err := c.doJSON(ctx, http.MethodGet, "/pricing", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	if strings.TrimSpace(c.APIKey) == "" {
		return errors.New("REGISTRAR_API_KEY is not configured")
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("registrar request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("registrar response read failed: %w", err)
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("registrar returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("registrar response decode failed: %w", err)
	}
	return nil
}
