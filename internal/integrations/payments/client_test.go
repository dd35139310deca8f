package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"travel-funnel/internal/domain"
)

func submission() domain.PaymentSubmission {
	return domain.PaymentSubmission{
		LeadID:          "lead-42",
		PaymentMethodID: "pm_123",
		PlanID:          "101",
		PlanName:        "CORIS 60",
		AmountCents:     12346,
		Currency:        "brl",
		Buyer:           domain.Buyer{Name: "Ana", Email: "ana@example.com", Address: "Rua A, 1"},
		Travelers:       []domain.Traveler{{FirstName: "Ana", LastName: "Silva"}},
	}
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(srv.URL, "TENANT1", WithHTTPClient(&http.Client{Timeout: 2 * time.Second}))
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient("", "TENANT1")
	require.Error(t, err)
	_, err = NewClient("https://ingest.example.com", " ")
	require.Error(t, err)
}

func TestSubmit_HappyPath(t *testing.T) {
	var gotQuery map[string][]string
	var gotPayload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotQuery = r.URL.Query()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		_, _ = w.Write([]byte(`{"processor":{"id":"pi_789"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	conf, err := c.Submit(context.Background(), submission())
	require.NoError(t, err)
	require.Equal(t, "pi_789", conf.ID)

	require.Equal(t, []string{"TENANT1"}, gotQuery["tenant_id"])
	require.Equal(t, []string{"card_sale"}, gotQuery["topic"])
	require.Equal(t, []string{"api_backend"}, gotQuery["source"])

	require.Equal(t, "TENANT1", gotPayload["tenant_id"])
	payment := gotPayload["payment"].(map[string]any)
	require.Equal(t, float64(12346), payment["amount_cents"])
	require.Equal(t, "brl", payment["currency"])
	require.Equal(t, "pm_123", payment["payment_method_id"])
	require.Equal(t, "ana@example.com", payment["receipt_email"])
	metadata := payment["metadata"].(map[string]any)
	require.Equal(t, "lead-42", metadata["lead_id"])
	require.Equal(t, "101", metadata["plan_id"])
}

func TestSubmit_MissingConfirmationFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"message":"accepted"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	conf, err := c.Submit(context.Background(), submission())
	require.NoError(t, err)
	require.Equal(t, "processed", conf.ID)
}

func TestSubmit_DeclinedOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(422)
		_, _ = w.Write([]byte(`{"error":"card refused"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Submit(context.Background(), submission())
	require.Error(t, err)

	var declined *DeclinedError
	require.ErrorAs(t, err, &declined)
	require.Equal(t, 422, declined.StatusCode)
	require.Contains(t, declined.Body, "card refused")
}

func TestSubmit_UndecodableSuccessBodyIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not-json`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Submit(context.Background(), submission())
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode response")
}

func TestSubmit_NetworkError(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:1", "TENANT1",
		WithHTTPClient(&http.Client{Timeout: 100 * time.Millisecond}))
	require.NoError(t, err)

	_, err = c.Submit(context.Background(), submission())
	require.Error(t, err)
	require.Contains(t, err.Error(), "request failed")
}
