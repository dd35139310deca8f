// Package payments submits charges to the tenant payment-ingestion
// endpoint. The endpoint wraps the card processor server-side; this client
// only posts the ingestion payload and reads back a confirmation id.
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

	"travel-funnel/internal/domain"
)

const (
	ingestTopic  = "card_sale"
	ingestSource = "api_backend"

	// fallbackConfirmationID stands in when the provider accepts the
	// charge but omits an id from the response payload.
	fallbackConfirmationID = "processed"
)

// DeclinedError is a non-2xx response from the ingestion endpoint. The
// checkout aborts on it; nothing after payment runs.
type DeclinedError struct {
	StatusCode int
	Body       string
}

func (e *DeclinedError) Error() string {
	return fmt.Sprintf("payments: charge declined with status %d: %s", e.StatusCode, e.Body)
}

type ingestPayload struct {
	TenantID       string            `json:"tenant_id"`
	Type           string            `json:"type"`
	Customer       domain.Buyer      `json:"customer"`
	Addresses      []string          `json:"addresses"`
	Payment        ingestPayment     `json:"payment"`
	ExtraTravelers []domain.Traveler `json:"extra_travelers"`
}

type ingestPayment struct {
	AmountCents     int64             `json:"amount_cents"`
	Currency        string            `json:"currency"`
	Description     string            `json:"description"`
	ReceiptEmail    string            `json:"receipt_email"`
	Metadata        map[string]string `json:"metadata"`
	PaymentMethodID string            `json:"payment_method_id"`
}

type ingestResponse struct {
	Processor struct {
		ID string `json:"id"`
	} `json:"processor"`
}

// Client posts charges for one tenant.
type Client struct {
	baseURL    string
	tenantID   string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client for the given ingestion URL and tenant.
func NewClient(baseURL, tenantID string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("payments: base URL must not be empty")
	}
	if strings.TrimSpace(tenantID) == "" {
		return nil, errors.New("payments: tenant id must not be empty")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tenantID:   tenantID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Submit posts the charge and returns the provider confirmation. A non-2xx
// status is a DeclinedError; an undecodable success body is also an error,
// since the confirmation can never be recovered afterwards.
func (c *Client) Submit(ctx context.Context, sub domain.PaymentSubmission) (domain.PaymentConfirmation, error) {
	payload := ingestPayload{
		TenantID:  c.tenantID,
		Type:      "card",
		Customer:  sub.Buyer,
		Addresses: []string{sub.Buyer.Address},
		Payment: ingestPayment{
			AmountCents:  sub.AmountCents,
			Currency:     sub.Currency,
			Description:  "Travel insurance - " + sub.PlanName,
			ReceiptEmail: sub.Buyer.Email,
			Metadata: map[string]string{
				"lead_id": sub.LeadID,
				"origin":  ingestSource,
				"plan_id": sub.PlanID,
			},
			PaymentMethodID: sub.PaymentMethodID,
		},
		ExtraTravelers: sub.Travelers,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.PaymentConfirmation{}, fmt.Errorf("payments: marshal payload: %w", err)
	}

	q := url.Values{}
	q.Set("tenant_id", c.tenantID)
	q.Set("topic", ingestTopic)
	q.Set("source", ingestSource)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"?"+q.Encode(), bytes.NewReader(body))
	if err != nil {
		return domain.PaymentConfirmation{}, fmt.Errorf("payments: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return domain.PaymentConfirmation{}, fmt.Errorf("payments: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return domain.PaymentConfirmation{}, fmt.Errorf("payments: read response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return domain.PaymentConfirmation{}, &DeclinedError{StatusCode: res.StatusCode, Body: truncate(string(raw), 4096)}
	}

	var decoded ingestResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return domain.PaymentConfirmation{}, fmt.Errorf("payments: decode response: %w", err)
	}
	id := decoded.Processor.ID
	if id == "" {
		id = fallbackConfirmationID
	}
	return domain.PaymentConfirmation{ID: id}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
