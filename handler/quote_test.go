package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"travel-funnel/internal/domain"
	"travel-funnel/internal/usecase"
)

type stubQuoteUseCase struct {
	out []domain.PricedPlan
	err error
	in  usecase.QuoteInput
}

func (s *stubQuoteUseCase) Quote(_ context.Context, in usecase.QuoteInput) ([]domain.PricedPlan, error) {
	s.in = in
	return s.out, s.err
}

func makeEvent(path, body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       path,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func TestNewQuoteHandler_ValidatesDependency(t *testing.T) {
	_, err := NewQuoteHandler(nil)
	require.Error(t, err)
}

func TestQuoteHandle_HappyPath(t *testing.T) {
	uc := &stubQuoteUseCase{out: []domain.PricedPlan{
		{ID: "1", Name: "CORIS 60", Coverage: "USD 60.000", Baggage: "USD 1.500", TotalPrice: 100.5},
	}}
	h, err := NewQuoteHandler(uc)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent("/quote", `{"destination":"Europe","days":10,"ages":[30,72],"tripType":"leisure","origin":"tier-a"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, usecase.QuoteInput{
		Destination: "Europe", Days: 10, Ages: []int{30, 72}, TripType: "leisure", Origin: "tier-a",
	}, uc.in)

	out := parseBody[[]domain.PricedPlan](t, resp.Body)
	require.Len(t, out, 1)
	require.Equal(t, "CORIS 60", out[0].Name)
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])
}

func TestQuoteHandle_EmptyResultIsJSONArray(t *testing.T) {
	uc := &stubQuoteUseCase{out: []domain.PricedPlan{}}
	h, err := NewQuoteHandler(uc)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent("/quote", `{"destination":"Europe","days":10,"ages":[30]}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "[]", resp.Body)
}

func TestQuoteHandle_MethodNotAllowed(t *testing.T) {
	h, err := NewQuoteHandler(&stubQuoteUseCase{})
	require.NoError(t, err)

	event := makeEvent("/quote", `{}`)
	event.HTTPMethod = http.MethodGet
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestQuoteHandle_InvalidBody(t *testing.T) {
	h, err := NewQuoteHandler(&stubQuoteUseCase{})
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent("/quote", `not-json`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	out := parseBody[errorResponse](t, resp.Body)
	require.Equal(t, string(usecase.ErrorInvalidInput), out.Error)
	require.Equal(t, "malformed_body", out.Reason)
}

func TestQuoteHandle_MapsUseCaseErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "invalid input", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "missing_ages"}, status: http.StatusBadRequest, code: string(usecase.ErrorInvalidInput)},
		{name: "upstream", err: &usecase.Error{Code: usecase.ErrorUpstream, Reason: "plan_listing_failed"}, status: http.StatusBadGateway, code: string(usecase.ErrorUpstream)},
		{name: "config", err: &usecase.Error{Code: usecase.ErrorConfig, Reason: "insurance_credentials"}, status: http.StatusInternalServerError, code: string(usecase.ErrorConfig)},
		{name: "internal", err: &usecase.Error{Code: usecase.ErrorInternal, Reason: "unexpected"}, status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, err := NewQuoteHandler(&stubQuoteUseCase{err: tc.err})
			require.NoError(t, err)

			resp, err := h.Handle(context.Background(), makeEvent("/quote", `{"destination":"Europe","days":10,"ages":[30]}`))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			out := parseBody[errorResponse](t, resp.Body)
			require.Equal(t, tc.code, out.Error)
		})
	}
}

func TestQuoteHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	h, err := NewQuoteHandler(&stubQuoteUseCase{out: []domain.PricedPlan{}})
	require.NoError(t, err)

	event := makeEvent("/quote", `{"destination":"Europe","days":10,"ages":[30]}`)
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
}
