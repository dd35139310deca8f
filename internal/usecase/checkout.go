package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"travel-funnel/internal/domain"
	"travel-funnel/internal/integrations/payments"
)

// PaymentSubmitter forwards a charge to the payment-ingestion endpoint.
type PaymentSubmitter interface {
	Submit(ctx context.Context, sub domain.PaymentSubmission) (domain.PaymentConfirmation, error)
}

// PolicyIssuer runs the insurance vendor's record-then-issue order flow.
type PolicyIssuer interface {
	Issue(ctx context.Context, req domain.IssuanceRequest) (domain.IssuanceResult, error)
}

// ChipProvisioner provisions an eSIM for a paid lead.
type ChipProvisioner interface {
	Provision(ctx context.Context, leadID string) (domain.ProvisioningResult, error)
}

// LeadWriter persists checkout state to the lead record.
type LeadWriter interface {
	RecordFailure(ctx context.Context, leadID, message string) error
	RecordOutcome(ctx context.Context, outcome domain.LeadOutcome) error
}

// CheckoutService runs the payment, issuance, and provisioning sequence.
// Payment failure aborts; issuance and provisioning failures degrade, and
// the terminal lead state is written regardless.
type CheckoutService struct {
	payments PaymentSubmitter
	issuer   PolicyIssuer
	esim     ChipProvisioner
	leads    LeadWriter
}

type CheckoutInput struct {
	PaymentMethodID string
	LeadID          string
	PlanID          string
	PlanName        string
	Amount          float64
	Currency        string
	Buyer           domain.Buyer
	Travelers       []domain.Traveler
	ContactPhone    string
	Dates           domain.TripDates
	Destination     string
}

type CheckoutOutput struct {
	VoucherNumber      string
	DownloadLink       string
	ProvisioningStatus domain.ProvisioningStatus
}

func NewCheckoutService(p PaymentSubmitter, issuer PolicyIssuer, esim ChipProvisioner, leads LeadWriter) (*CheckoutService, error) {
	if p == nil {
		return nil, errors.New("usecase: payment submitter must not be nil")
	}
	if issuer == nil {
		return nil, errors.New("usecase: policy issuer must not be nil")
	}
	if esim == nil {
		return nil, errors.New("usecase: chip provisioner must not be nil")
	}
	if leads == nil {
		return nil, errors.New("usecase: lead writer must not be nil")
	}
	return &CheckoutService{payments: p, issuer: issuer, esim: esim, leads: leads}, nil
}

// Checkout executes the strict payment -> issuance -> provisioning order.
// Once payment succeeds the caller always gets a success response; sub-step
// problems surface only as status fields and persisted notes.
func (s *CheckoutService) Checkout(ctx context.Context, in CheckoutInput) (CheckoutOutput, error) {
	if err := validateCheckout(in); err != nil {
		return CheckoutOutput{}, err
	}

	currency := in.Currency
	if currency == "" {
		currency = "brl"
	}

	confirmation, err := s.payments.Submit(ctx, domain.PaymentSubmission{
		LeadID:          in.LeadID,
		PaymentMethodID: in.PaymentMethodID,
		PlanID:          in.PlanID,
		PlanName:        in.PlanName,
		AmountCents:     int64(math.Round(in.Amount * 100)),
		Currency:        currency,
		Buyer:           in.Buyer,
		Travelers:       in.Travelers,
	})
	if err != nil {
		s.recordFailure(ctx, in.LeadID, err.Error())
		var declined *payments.DeclinedError
		if errors.As(err, &declined) {
			return CheckoutOutput{}, newError(ErrorPaymentDeclined, "payment_declined", err)
		}
		return CheckoutOutput{}, newError(ErrorUpstream, "payment_submit_failed", err)
	}

	issuance, err := s.issuer.Issue(ctx, domain.IssuanceRequest{
		LeadID:       in.LeadID,
		PlanID:       in.PlanID,
		Destination:  in.Destination,
		Dates:        in.Dates,
		Travelers:    in.Travelers,
		Buyer:        in.Buyer,
		ContactPhone: in.ContactPhone,
	})
	if err != nil {
		slog.Error("policy issuance failed after payment", "leadId", in.LeadID, "err", err)
		s.recordFailure(ctx, in.LeadID, "payment ok, issuance failed: "+err.Error())
		issuance = domain.FailedIssuance()
	}

	provisioning := domain.ProvisioningResult{Status: domain.ProvisioningPending}
	if result, err := s.esim.Provision(ctx, in.LeadID); err != nil {
		slog.Error("esim provisioning failed", "leadId", in.LeadID, "err", err)
		provisioning = domain.ProvisioningResult{Status: domain.ProvisioningError, Detail: err.Error()}
	} else {
		provisioning = result
	}

	outcome := domain.LeadOutcome{
		LeadID:            in.LeadID,
		Voucher:           issuance.Voucher,
		OrderID:           issuance.OrderID,
		DocumentLink:      issuance.DocumentLink,
		PaymentConfirmID:  confirmation.ID,
		ProvisioningNotes: provisioningSummary(provisioning),
	}
	if err := s.leads.RecordOutcome(ctx, outcome); err != nil {
		// Payment already stands; a bookkeeping failure must not turn the
		// response into an error.
		slog.Error("terminal lead write failed", "leadId", in.LeadID, "err", err)
	}

	return CheckoutOutput{
		VoucherNumber:      issuance.Voucher,
		DownloadLink:       issuance.DocumentLink,
		ProvisioningStatus: provisioning.Status,
	}, nil
}

func validateCheckout(in CheckoutInput) error {
	switch {
	case in.LeadID == "":
		return newError(ErrorInvalidInput, "missing_lead_id", nil)
	case in.PaymentMethodID == "":
		return newError(ErrorInvalidInput, "missing_payment_method", nil)
	case in.PlanID == "":
		return newError(ErrorInvalidInput, "missing_plan_id", nil)
	case in.Amount <= 0:
		return newError(ErrorInvalidInput, "invalid_amount", nil)
	case len(in.Travelers) == 0:
		return newError(ErrorInvalidInput, "missing_travelers", nil)
	}
	return nil
}

// recordFailure is best-effort: a failed write is logged, never propagated.
func (s *CheckoutService) recordFailure(ctx context.Context, leadID, message string) {
	if err := s.leads.RecordFailure(ctx, leadID, message); err != nil {
		slog.Error("failed to record lead failure", "leadId", leadID, "err", err)
	}
}

func provisioningSummary(r domain.ProvisioningResult) string {
	detail := r.Detail
	if len(detail) > 100 {
		detail = detail[:100]
	}
	return fmt.Sprintf("esim: %s. detail: %s", r.Status, detail)
}
