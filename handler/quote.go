package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"travel-funnel/internal/domain"
	"travel-funnel/internal/usecase"
)

// QuoteUseCase is the quote-aggregation operation behind the endpoint.
type QuoteUseCase interface {
	Quote(ctx context.Context, in usecase.QuoteInput) ([]domain.PricedPlan, error)
}

type quoteRequest struct {
	Destination string `json:"destination"`
	Days        int    `json:"days"`
	Ages        []int  `json:"ages"`
	TripType    string `json:"tripType"`
	Origin      string `json:"origin"`
}

// QuoteHandler serves POST requests returning the priced plan list.
type QuoteHandler struct {
	uc QuoteUseCase
}

func NewQuoteHandler(uc QuoteUseCase) (*QuoteHandler, error) {
	if uc == nil {
		return nil, errors.New("handler: quote use case must not be nil")
	}
	return &QuoteHandler{uc: uc}, nil
}

func (h *QuoteHandler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(event)
	if event.HTTPMethod != http.MethodPost {
		return methodNotAllowed(corrID), nil
	}

	var req quoteRequest
	if err := json.Unmarshal([]byte(event.Body), &req); err != nil {
		return jsonResponse(http.StatusBadRequest, corrID, errorResponse{
			Error:  string(usecase.ErrorInvalidInput),
			Reason: "malformed_body",
		}), nil
	}

	plans, err := h.uc.Quote(ctx, usecase.QuoteInput{
		Destination: req.Destination,
		Days:        req.Days,
		Ages:        req.Ages,
		TripType:    req.TripType,
		Origin:      req.Origin,
	})
	if err != nil {
		slog.Error("quote request failed", "correlationId", corrID, "err", err)
		return errorJSON(err, corrID), nil
	}

	return jsonResponse(http.StatusOK, corrID, plans), nil
}
