package payments

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

const defaultAPIBaseURL = "https://api.payments.example.com/v1"

// HTTPClient talks to the payment processor API over REST.
type HTTPClient struct {
	BaseURL    string
	SecretKey  string
	HTTPClient *http.Client
}

// NewHTTPClientFromEnv builds a payment client from environment settings.
func NewHTTPClientFromEnv() *HTTPClient {
	return &HTTPClient{
		BaseURL:   strings.TrimRight(env.GetEnv("PAYMENT_API_BASE_URL", defaultAPIBaseURL), "/"),
		SecretKey: strings.TrimSpace(env.GetEnv("PAYMENT_SECRET_KEY", "")),
		HTTPClient: &http.Client{
			Timeout: env.GetEnvDuration("PAYMENT_TIMEOUT", 15*time.Second),
		},
	}
}

func (c *HTTPClient) CreateIntent(ctx context.Context, in CreateIntentInput) (*Payment, error) {
	if in.Amount <= 0 {
		return nil, errors.New("amount must be positive")
	}
	var out Payment
	headers := map[string]string{}
	if in.IdempotencyKey != "" {
		headers["Idempotency-Key"] = in.IdempotencyKey
	}
	if err := c.doJSON(ctx, http.MethodPost, "/payment_intents", in, &out, headers); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetPayment(ctx context.Context, paymentRef string) (*Payment, error) {
	if strings.TrimSpace(paymentRef) == "" {
		return nil, errors.New("payment ref is required")
	}
	var out Payment
	if err := c.doJSON(ctx, http.MethodGet, "/payment_intents/"+url.PathEscape(paymentRef), nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body, out interface{}, headers map[string]string) error {
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("PAYMENT_SECRET_KEY is not configured")
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
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("payment request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("payment response read failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("payment processor returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("payment response decode failed: %w", err)
	}
	return nil
}
