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

// CheckoutUseCase is the checkout-orchestration operation behind the endpoint.
type CheckoutUseCase interface {
	Checkout(ctx context.Context, in usecase.CheckoutInput) (usecase.CheckoutOutput, error)
}

type checkoutRequest struct {
	PaymentMethodID string            `json:"paymentMethodId"`
	LeadID          string            `json:"leadId"`
	PlanID          string            `json:"planId"`
	PlanName        string            `json:"planName"`
	Amount          float64           `json:"amount"`
	Currency        string            `json:"currency"`
	Buyer           domain.Buyer      `json:"buyer"`
	Travelers       []domain.Traveler `json:"travelers"`
	ContactPhone    string            `json:"contactPhone"`
	Dates           domain.TripDates  `json:"dates"`
	Destination     string            `json:"destination"`
}

type checkoutResponse struct {
	Success            bool   `json:"success"`
	VoucherNumber      string `json:"voucherNumber"`
	DownloadLink       string `json:"downloadLink"`
	ProvisioningStatus string `json:"provisioningStatus"`
}

// CheckoutHandler serves POST requests completing a paid checkout.
type CheckoutHandler struct {
	uc CheckoutUseCase
}

func NewCheckoutHandler(uc CheckoutUseCase) (*CheckoutHandler, error) {
	if uc == nil {
		return nil, errors.New("handler: checkout use case must not be nil")
	}
	return &CheckoutHandler{uc: uc}, nil
}

func (h *CheckoutHandler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(event)
	if event.HTTPMethod != http.MethodPost {
		return methodNotAllowed(corrID), nil
	}

	var req checkoutRequest
	if err := json.Unmarshal([]byte(event.Body), &req); err != nil {
		return jsonResponse(http.StatusBadRequest, corrID, errorResponse{
			Error:  string(usecase.ErrorInvalidInput),
			Reason: "malformed_body",
		}), nil
	}

	out, err := h.uc.Checkout(ctx, usecase.CheckoutInput{
		PaymentMethodID: req.PaymentMethodID,
		LeadID:          req.LeadID,
		PlanID:          req.PlanID,
		PlanName:        req.PlanName,
		Amount:          req.Amount,
		Currency:        req.Currency,
		Buyer:           req.Buyer,
		Travelers:       req.Travelers,
		ContactPhone:    req.ContactPhone,
		Dates:           req.Dates,
		Destination:     req.Destination,
	})
	if err != nil {
		slog.Error("checkout request failed", "correlationId", corrID, "leadId", req.LeadID, "err", err)
		return errorJSON(err, corrID), nil
	}

	return jsonResponse(http.StatusOK, corrID, checkoutResponse{
		Success:            true,
		VoucherNumber:      out.VoucherNumber,
		DownloadLink:       out.DownloadLink,
		ProvisioningStatus: string(out.ProvisioningStatus),
	}), nil
}
