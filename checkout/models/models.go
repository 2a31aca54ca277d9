package models

import "fmt"

// PaymentIntent is the amount and order identifiers the customer approved
// before being redirected to the external payment gateway. It is advisory:
// the backend ledger stays the source of truth, the intent only flags
// tampering on the way back.
type PaymentIntent struct {
	OrderID         string `json:"order_id"`
	ReservationID   string `json:"reservation_id"`
	Amount          int64  `json:"amount"`
	DiscountID      string `json:"discount_id,omitempty"`
	UsedPointAmount int64  `json:"used_point_amount"`
}

// PaymentRecord links an orderId to the backend's own payment-processing
// identifier returned by the save-before call. Confirmation cannot proceed
// without it.
type PaymentRecord struct {
	PaymentID     string `json:"payment_id"`
	OrderID       string `json:"order_id"`
	ReservationID string `json:"reservation_id"`
	Status        string `json:"status"`
}

// DiscountOffer is an entry of the external discount catalog. Exactly one of
// DiscountRate (percentage, 0..100) and DiscountAmount (flat, minor units) is
// set in practice; a flat amount wins when both are present.
type DiscountOffer struct {
	ID             string `json:"id"`
	ProviderName   string `json:"provider_name"`
	Description    string `json:"description,omitempty"`
	DiscountRate   int64  `json:"discount_rate,omitempty"`
	DiscountAmount int64  `json:"discount_amount,omitempty"`
}

// PointLedgerSnapshot is a read-only view of the customer's loyalty balance.
type PointLedgerSnapshot struct {
	AvailableBalance int64 `json:"available_balance"`
}

// ConfirmationResult is produced once per confirmed payment and never
// mutated afterwards.
type ConfirmationResult struct {
	OrderID              string `json:"order_id"`
	PaymentKey           string `json:"payment_key"`
	Amount               int64  `json:"amount"`
	ReservationID        string `json:"reservation_id,omitempty"`
	Status               string `json:"status"`
	ReservationCompleted bool   `json:"reservation_completed"`
}

const (
	PaymentStatusReady     = "READY"
	PaymentStatusCompleted = "COMPLETED"
)

// Failure reason codes carried to the failure redirect.
const (
	FailureInvalidParams         = "INVALID_PAYMENT_PARAMS"
	FailureInvalidOrderID        = "INVALID_ORDER_ID"
	FailureAmountMismatch        = "AMOUNT_MISMATCH"
	FailureOrderIDMismatch       = "ORDER_ID_MISMATCH"
	FailurePaymentRecordNotFound = "PAYMENT_RECORD_NOT_FOUND"
	FailureConfirmation          = "PAYMENT_CONFIRMATION_FAILED"
	FailurePaymentError          = "PAYMENT_ERROR"
	FailureUnexpected            = "CONFIRMATION_FAILED"
)

// FailureReason is a terminal checkout failure. It short-circuits the
// confirmation flow and ends up as code+message on the failure redirect.
type FailureReason struct {
	Code    string
	Message string
}

func (f *FailureReason) Error() string {
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

func NewFailure(code, message string) *FailureReason {
	return &FailureReason{Code: code, Message: message}
}
