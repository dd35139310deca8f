// Package esim is the client for the eSIM provider's REST API: password
// grant auth, bundle lookup against the price list, and the cart plus
// sales-order pair that provisions a chip for a lead.
package esim

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"travel-funnel/internal/domain"
	"travel-funnel/internal/integrations/paramstore"
)

const defaultBaseURL = "https://beta.ezsimconnect.com"

// Sub-flow failures with a stable caller-visible reason. Both degrade the
// checkout rather than failing it.
var (
	ErrAuthFailed   = errors.New("esim: authentication failed")
	ErrPlanNotFound = errors.New("esim: plan not found")
)

// HTTPStatusError captures non-2xx provider responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("esim: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

type bundle struct {
	ID          json.Number `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
}

// Client talks to the eSIM provider. Account credentials come from the
// parameter store on first use; the bearer token is acquired per call since
// the provider's tokens are short-lived.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	getter      paramstore.Getter
	paramPrefix string
	targetPlan  string

	credsOnce sync.Once
	email     string
	password  string
	credsErr  error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client provisioning the named target plan, with
// account credentials under paramPrefix.
func NewClient(ps paramstore.Getter, paramPrefix, targetPlan string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("esim: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("esim: parameter prefix must not be empty")
	}
	if strings.TrimSpace(targetPlan) == "" {
		return nil, errors.New("esim: target plan must not be empty")
	}
	c := &Client{
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		getter:      ps,
		paramPrefix: paramPrefix,
		targetPlan:  targetPlan,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Provision buys one unit of the target bundle for the lead: auth, bundle
// lookup, cart entry, sales order. The lead id tags the cart and order as
// the traceability reference. Every failure path returns an error; the
// orchestrator converts it to a degraded provisioning result.
func (c *Client) Provision(ctx context.Context, leadID string) (domain.ProvisioningResult, error) {
	token, err := c.authenticate(ctx)
	if err != nil {
		return domain.ProvisioningResult{}, err
	}

	bundleID, err := c.findBundle(ctx, token)
	if err != nil {
		return domain.ProvisioningResult{}, err
	}

	if _, err := c.post(ctx, "/rest/v1/cart", token, map[string]any{
		"organization_bundle_id": bundleID,
		"quantity":               1,
		"reference":              leadID,
	}); err != nil {
		return domain.ProvisioningResult{}, fmt.Errorf("esim: create cart: %w", err)
	}

	orderBody, err := c.post(ctx, "/rest/v1/sales_order", token, map[string]any{
		"reference": leadID,
	})
	if err != nil {
		return domain.ProvisioningResult{}, fmt.Errorf("esim: create sales order: %w", err)
	}

	return domain.ProvisioningResult{
		Status: domain.ProvisioningIssued,
		Detail: string(orderBody),
	}, nil
}

// authenticate performs the password grant and returns the bearer token.
// Any transport failure or missing token folds into ErrAuthFailed.
func (c *Client) authenticate(ctx context.Context) (string, error) {
	email, password, credsErr := c.resolveCredentials(ctx)
	if credsErr != nil {
		return "", credsErr
	}

	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", fmt.Errorf("esim: marshal auth request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/v1/token?grant_type=password", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("esim: create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	var payload tokenResponse
	if res.StatusCode < 200 || res.StatusCode >= 300 || json.Unmarshal(raw, &payload) != nil || payload.AccessToken == "" {
		return "", ErrAuthFailed
	}
	return payload.AccessToken, nil
}

// findBundle resolves the target plan in the provider price list: exact
// name/description match first, then a heuristic Global 2GB fallback. The
// id keeps its wire representation, numeric ids stay numeric.
func (c *Client) findBundle(ctx context.Context, token string) (json.Number, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/rest/v1/price_list?select=*", nil)
	if err != nil {
		return "", fmt.Errorf("esim: create price list request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPlanNotFound, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", ErrPlanNotFound
	}
	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPlanNotFound, err)
	}
	var bundles []bundle
	if err := json.Unmarshal(raw, &bundles); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPlanNotFound, err)
	}

	for _, b := range bundles {
		if b.Description == c.targetPlan || b.Name == c.targetPlan {
			return b.ID, nil
		}
	}
	for _, b := range bundles {
		if strings.Contains(b.Description, "Global") && strings.Contains(b.Description, "2GB") {
			return b.ID, nil
		}
	}
	return "", ErrPlanNotFound
}

// post sends an authenticated JSON POST and returns the raw response body.
func (c *Client) post(ctx context.Context, path, token string, payload map[string]any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &HTTPStatusError{StatusCode: res.StatusCode, URL: url, Body: truncate(string(raw), 4096)}
	}
	return raw, nil
}

func (c *Client) resolveCredentials(ctx context.Context) (string, string, error) {
	c.credsOnce.Do(func() {
		email, password, err := paramstore.GetPair(ctx, c.getter, c.paramPrefix+"/esim", "email", "password")
		if err != nil {
			c.credsErr = fmt.Errorf("%w: %v", ErrAuthFailed, err)
			return
		}
		c.email, c.password = email, password
	})
	return c.email, c.password, c.credsErr
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
