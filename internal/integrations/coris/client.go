// Package coris is the client for the insurance vendor's SOAP back office:
// plan listing, per-plan pricing, and the two-step order record/issue flow.
package coris

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"travel-funnel/internal/domain"
	"travel-funnel/internal/integrations/paramstore"
	"travel-funnel/internal/soap"
)

const (
	defaultBaseURL = "https://ws.coris.com.br/webservice2/service.asmx"

	methodListPlans   = "BuscarPlanosNovosV13"
	methodPricePlan   = "BuscarPrecosIndividualV13"
	methodRecordOrder = "GravarPedido"
	methodIssueOrder  = "EmitirPedido"
)

// ErrCredentials marks a failure to load the vendor login/password from
// the parameter store. Handlers map it to a server-misconfiguration status.
var ErrCredentials = errors.New("coris: credentials unavailable")

// ErrMissingPrice marks a pricing response without the required total
// field. The quote flow drops the affected plan.
var ErrMissingPrice = errors.New("coris: pricing response missing total price")

// HTTPStatusError captures non-2xx vendor responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("coris: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// VendorError is a non-zero error code embedded in an otherwise successful
// SOAP response, carrying the vendor's message.
type VendorError struct {
	Op      string
	Code    string
	Message string
}

func (e *VendorError) Error() string {
	return fmt.Sprintf("coris: %s failed with code %s: %s", e.Op, e.Code, e.Message)
}

// Client talks to the vendor web service. Credentials are fetched from the
// parameter store on first use and reused for the process lifetime.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	getter      paramstore.Getter
	paramPrefix string

	credsOnce sync.Once
	login     string
	password  string
	credsErr  error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client backed by the given paramstore.Getter for
// login/password retrieval under paramPrefix.
func NewClient(ps paramstore.Getter, paramPrefix string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("coris: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("coris: parameter prefix must not be empty")
	}
	c := &Client{
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		getter:      ps,
		paramPrefix: paramPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resolveCredentials(ctx context.Context) (string, string, error) {
	c.credsOnce.Do(func() {
		login, password, err := paramstore.GetPair(ctx, c.getter, c.paramPrefix+"/coris", "login", "password")
		if err != nil {
			c.credsErr = fmt.Errorf("%w: %v", ErrCredentials, err)
			return
		}
		c.login, c.password = login, password
	})
	return c.login, c.password, c.credsErr
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// call posts a SOAP envelope for method and returns the raw response body.
func (c *Client) call(ctx context.Context, method string, params map[string]string) (string, error) {
	body := soap.Envelope(method, params)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("coris: create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", soap.Action(method))

	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("coris: %s request failed: %w", method, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return "", &HTTPStatusError{StatusCode: res.StatusCode, URL: c.baseURL, Body: string(buf)}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("coris: read %s response: %w", method, err)
	}
	return string(buf), nil
}

// ListPlans fetches the plans available for a destination and trip length.
func (c *Client) ListPlans(ctx context.Context, destination string, days int) ([]domain.PlanCandidate, error) {
	login, password, err := c.resolveCredentials(ctx)
	if err != nil {
		return nil, err
	}

	res, err := c.call(ctx, methodListPlans, map[string]string{
		"login":    login,
		"senha":    password,
		"destino":  destination,
		"vigencia": strconv.Itoa(days),
	})
	if err != nil {
		return nil, err
	}

	records := soap.Records(res, "buscaPlanos")
	plans := make([]domain.PlanCandidate, 0, len(records))
	for _, rec := range records {
		plans = append(plans, domain.PlanCandidate{
			ID:         rec["id"],
			Name:       rec["nome"],
			Attributes: rec,
		})
	}
	return plans, nil
}

// PricePlan quotes one plan for the given trip length and age tally,
// returning the vendor-computed total in local currency. The record must
// carry both the legacy per-person field and the total.
func (c *Client) PricePlan(ctx context.Context, planID string, days int, tally domain.AgeTally) (float64, error) {
	login, password, err := c.resolveCredentials(ctx)
	if err != nil {
		return 0, err
	}

	res, err := c.call(ctx, methodPricePlan, map[string]string{
		"login":   login,
		"senha":   password,
		"idplano": planID,
		"dias":    strconv.Itoa(days),
		"pax065":  strconv.Itoa(tally.UpTo65),
		"pax070":  strconv.Itoa(tally.UpTo70),
		"pax075":  strconv.Itoa(tally.UpTo75),
		"pax080":  strconv.Itoa(tally.UpTo80),
		"pax085":  strconv.Itoa(tally.UpTo85),
	})
	if err != nil {
		return 0, err
	}

	records := soap.Records(res, "buscaPrecos")
	if len(records) == 0 {
		return 0, ErrMissingPrice
	}
	rec := records[0]
	if rec["precoindividualrs"] == "" || rec["totalrs"] == "" {
		return 0, ErrMissingPrice
	}
	total, err := parsePrice(rec["totalrs"])
	if err != nil {
		return 0, fmt.Errorf("coris: parse total price %q: %w", rec["totalrs"], err)
	}
	return total, nil
}

// Issue records the insurance order and issues the policy, returning the
// voucher(s), document link, and vendor order id.
func (c *Client) Issue(ctx context.Context, req domain.IssuanceRequest) (domain.IssuanceResult, error) {
	login, password, err := c.resolveCredentials(ctx)
	if err != nil {
		return domain.IssuanceResult{}, err
	}

	phone := req.Buyer.Phone
	if phone == "" {
		phone = req.ContactPhone
	}

	recordRes, err := c.call(ctx, methodRecordOrder, map[string]string{
		"login":       login,
		"senha":       password,
		"idplano":     req.PlanID,
		"saida":       req.Dates.Departure,
		"retorno":     req.Dates.Return,
		"destino":     req.Destination,
		"passageiros": travelerList(req.Travelers),
		"contato":     req.Buyer.Name,
		"email":       req.Buyer.Email,
		"telefone":    digitsOnly(phone),
		"pagamento":   "CARTAO",
	})
	if err != nil {
		return domain.IssuanceResult{}, err
	}
	if err := vendorError(methodRecordOrder, recordRes); err != nil {
		return domain.IssuanceResult{}, err
	}

	orderID, ok := soap.Value(recordRes, "idpedido")
	if !ok || orderID == "" {
		return domain.IssuanceResult{}, errors.New("coris: record order response missing order id")
	}

	issueRes, err := c.call(ctx, methodIssueOrder, map[string]string{
		"login":    login,
		"senha":    password,
		"idpedido": orderID,
	})
	if err != nil {
		return domain.IssuanceResult{}, err
	}
	if err := vendorError(methodIssueOrder, issueRes); err != nil {
		return domain.IssuanceResult{}, err
	}

	link, ok := soap.Value(issueRes, "linkbilhete")
	if !ok {
		link, _ = soap.Value(issueRes, "url")
	}

	return domain.IssuanceResult{
		Voucher:      strings.Join(soap.Values(issueRes, "voucher"), ", "),
		DocumentLink: link,
		OrderID:      orderID,
	}, nil
}

// vendorError checks the embedded error code of a SOAP response. A missing
// or zero code means success.
func vendorError(op, res string) error {
	code, ok := soap.Value(res, "erro")
	if !ok || code == "0" || code == "" {
		return nil
	}
	msg, _ := soap.Value(res, "mensagem")
	return &VendorError{Op: op, Code: code, Message: msg}
}

// travelerList encodes travelers as the vendor's pipe-delimited,
// colon-separated list, normalizing birth dates to year-month-day.
func travelerList(travelers []domain.Traveler) string {
	parts := make([]string, 0, len(travelers))
	for _, t := range travelers {
		parts = append(parts, strings.Join([]string{
			t.FirstName, t.LastName, t.DocumentID, normalizeBirthDate(t.BirthDate), t.Sex,
		}, ":"))
	}
	return strings.Join(parts, "|")
}

// normalizeBirthDate converts day/month/year dates to year-month-day.
// Dates already in canonical form pass through unchanged.
func normalizeBirthDate(date string) string {
	if !strings.Contains(date, "/") {
		return date
	}
	fields := strings.Split(date, "/")
	if len(fields) != 3 {
		return date
	}
	return fields[2] + "-" + fields[1] + "-" + fields[0]
}

var nonDigitRe = regexp.MustCompile(`\D`)

func digitsOnly(s string) string {
	return nonDigitRe.ReplaceAllString(s, "")
}

// parsePrice reads the vendor's decimal format, which uses a comma decimal
// separator and optional dot thousands grouping.
func parsePrice(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	return strconv.ParseFloat(s, 64)
}
