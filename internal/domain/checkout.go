package domain

// Buyer is the purchasing contact on a checkout.
type Buyer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// Traveler is one insured passenger.
type Traveler struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	DocumentID string `json:"documentId"`
	BirthDate  string `json:"birthDate"`
	Sex        string `json:"sex"`
}

// TripDates are the departure and return dates of the insured trip.
type TripDates struct {
	Departure string `json:"departure"`
	Return    string `json:"return"`
}

// IssuanceRequest carries everything the insurance vendor needs to record
// and issue a policy order.
type IssuanceRequest struct {
	LeadID       string
	PlanID       string
	Destination  string
	Dates        TripDates
	Travelers    []Traveler
	Buyer        Buyer
	ContactPhone string
}

// IssuanceResult is the outcome of the two-step policy issuance. On the
// degraded path the orchestrator substitutes FailedIssuance().
type IssuanceResult struct {
	Voucher      string
	DocumentLink string
	OrderID      string
}

// FailedIssuance is the sentinel recorded when issuance fails after a
// successful payment.
func FailedIssuance() IssuanceResult {
	return IssuanceResult{Voucher: "ISSUANCE_FAILED", DocumentLink: "#"}
}

// ProvisioningStatus tags the eSIM sub-flow outcome.
type ProvisioningStatus string

const (
	ProvisioningPending ProvisioningStatus = "pending"
	ProvisioningIssued  ProvisioningStatus = "issued"
	ProvisioningError   ProvisioningStatus = "error"
)

// ProvisioningResult carries the eSIM outcome: the provider order payload
// on success, or the failure reason.
type ProvisioningResult struct {
	Status ProvisioningStatus
	Detail string
}

// PaymentSubmission is the charge forwarded to the payment-ingestion
// endpoint. AmountCents is the total in minor currency units.
type PaymentSubmission struct {
	LeadID          string
	PaymentMethodID string
	PlanID          string
	PlanName        string
	AmountCents     int64
	Currency        string
	Buyer           Buyer
	Travelers       []Traveler
}

// PaymentConfirmation identifies an accepted charge at the provider.
type PaymentConfirmation struct {
	ID string
}

// LeadOutcome is the terminal state written to the lead record after a
// checkout attempt, regardless of degraded sub-steps.
type LeadOutcome struct {
	LeadID            string
	Voucher           string
	OrderID           string
	DocumentLink      string
	PaymentConfirmID  string
	ProvisioningNotes string
}
