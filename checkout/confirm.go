package checkout

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/alovak/checkout-playground/checkout/models"
	"github.com/alovak/checkout-playground/internal/backendapi"
	"github.com/alovak/checkout-playground/internal/orderid"
	"github.com/alovak/checkout-playground/pkg/metrics"
	"golang.org/x/exp/slog"
)

// ConfirmationState tracks where a callback is in the confirmation flow.
type ConfirmationState string

const (
	StateConfirming    ConfirmationState = "CONFIRMING"
	StateNeedsFallback ConfirmationState = "NEEDS_FALLBACK"
	StateSucceeded     ConfirmationState = "SUCCEEDED"
	StateFailed        ConfirmationState = "FAILED"
)

// genericFailureMessage is what the failure page shows when the cause is
// internal. The detail goes to the logs, never to the redirect.
const genericFailureMessage = "payment confirmation could not be completed"

// CallbackParams are the gateway redirect's query parameters. All three are
// mandatory; amount is attacker-controlled input until cross-checked.
type CallbackParams struct {
	OrderID    string
	PaymentKey string
	Amount     int64
}

// ParseCallback validates the redirect query. Failures are terminal: the
// flow goes straight to the failure page.
func ParseCallback(q url.Values) (CallbackParams, *models.FailureReason) {
	orderID := q.Get("orderId")
	paymentKey := q.Get("paymentKey")
	rawAmount := q.Get("amount")

	if orderID == "" || paymentKey == "" || rawAmount == "" {
		return CallbackParams{}, models.NewFailure(models.FailureInvalidParams, "orderId, paymentKey and amount are required")
	}
	amount, err := strconv.ParseInt(rawAmount, 10, 64)
	if err != nil || amount < 0 {
		return CallbackParams{}, models.NewFailure(models.FailureInvalidParams, "amount must be a non-negative integer")
	}
	if err := orderid.Validate(orderID); err != nil {
		return CallbackParams{}, models.NewFailure(models.FailureInvalidOrderID, err.Error())
	}
	return CallbackParams{OrderID: orderID, PaymentKey: paymentKey, Amount: amount}, nil
}

// reconcile cross-checks the callback against the committed intent. A nil
// intent skips the check; the backend confirmation is then the sole source
// of truth.
func reconcile(params CallbackParams, intent *models.PaymentIntent) *models.FailureReason {
	if intent == nil {
		return nil
	}
	if intent.Amount != params.Amount {
		return models.NewFailure(models.FailureAmountMismatch, "callback amount does not match the committed amount")
	}
	if intent.OrderID != params.OrderID {
		// structurally impossible with a keyed store, checked anyway
		return models.NewFailure(models.FailureOrderIDMismatch, "callback order id does not match the committed order id")
	}
	return nil
}

// HandleCallback runs the full return-from-gateway flow: reconciliation
// against the commitment, backend confirmation, best-effort reservation
// completion and cleanup. It returns either a settlement result or a
// terminal failure for the failure redirect.
func (s *Service) HandleCallback(ctx context.Context, params CallbackParams) (models.ConfirmationResult, *models.FailureReason) {
	intent := s.lookupIntent(ctx, params.OrderID)

	if failure := reconcile(params, intent); failure != nil {
		// potential tampering: no confirmation attempt is made, the intent
		// stays behind as evidence
		s.logger.Warn("callback reconciliation failed",
			slog.String("order_id", params.OrderID),
			slog.String("code", failure.Code),
		)
		metrics.IncConfirmation(string(StateFailed), failure.Code)
		return models.ConfirmationResult{}, failure
	}

	result, failure := s.confirm(ctx, params, intent)
	if failure != nil {
		metrics.IncConfirmation(string(StateFailed), failure.Code)
		return models.ConfirmationResult{}, failure
	}
	metrics.IncConfirmation(string(StateSucceeded), "")
	return result, nil
}

// confirm drives the state machine Confirming -> {Succeeded, Failed,
// NeedsFallback -> Succeeded}. Side effects are strictly ordered: confirm,
// then best-effort completion, then event publish, then cleanup. Nothing is
// retried automatically; a manual reload re-enters with the same idempotent
// orderId/paymentKey.
func (s *Service) confirm(ctx context.Context, params CallbackParams, intent *models.PaymentIntent) (models.ConfirmationResult, *models.FailureReason) {
	viaFallback := false

	record, err := s.store.GetPayment(ctx, params.OrderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrCorrupt) {
			return models.ConfirmationResult{}, models.NewFailure(models.FailurePaymentRecordNotFound, "no payment record for order "+params.OrderID)
		}
		s.logger.Error("reading payment record", slog.String("order_id", params.OrderID), slog.Any("err", err))
		return models.ConfirmationResult{}, models.NewFailure(models.FailureUnexpected, genericFailureMessage)
	}

	resp, err := s.backend.ConfirmPayment(ctx, backendapi.ConfirmPaymentRequest{
		PaymentID:   record.PaymentID,
		OrderID:     params.OrderID,
		PaymentKey:  params.PaymentKey,
		FinalAmount: params.Amount,
	})
	if err != nil {
		failure, fallback := classifyConfirmError(err)
		if !fallback {
			// real failure: the intent is retained so the customer can
			// retry with the same committed amount
			s.logger.Error("payment confirmation failed",
				slog.String("order_id", params.OrderID),
				slog.String("code", failure.Code),
				slog.String("message", failure.Message),
				slog.Any("err", err),
			)
			return models.ConfirmationResult{}, failure
		}

		// confirm endpoint not implemented yet: synthesize the completed
		// result from the callback's own parameters so the customer-facing
		// flow is not blocked by an unfinished backend
		viaFallback = true
		s.logger.Warn("confirm endpoint not implemented, synthesizing result", slog.String("order_id", params.OrderID))
		resp = backendapi.ConfirmPaymentResponse{Status: models.PaymentStatusCompleted}
		if intent != nil {
			resp.ReservationID = intent.ReservationID
		} else if record.ReservationID != "" {
			resp.ReservationID = record.ReservationID
		}
	}

	result := models.ConfirmationResult{
		OrderID:       params.OrderID,
		PaymentKey:    params.PaymentKey,
		Amount:        params.Amount,
		ReservationID: resp.ReservationID,
		Status:        resp.Status,
	}
	if result.Status == "" {
		result.Status = models.PaymentStatusCompleted
	}

	// best-effort: a reservation-service outage must not strand a paid
	// customer, so failures here never escalate
	if resp.ReservationID != "" {
		if err := s.backend.CompleteReservation(ctx, resp.ReservationID); err != nil {
			s.logger.Error("reservation completion failed",
				slog.String("order_id", params.OrderID),
				slog.String("reservation_id", resp.ReservationID),
				slog.Any("err", err),
			)
		} else {
			result.ReservationCompleted = true
		}
	}

	state := StateSucceeded
	if viaFallback {
		state = StateNeedsFallback
	}
	s.publishSettlement(ctx, result, state)
	s.cleanup(ctx, params.OrderID, result.Status)

	return result, nil
}

// classifyConfirmError maps a confirmation error onto the three-way
// taxonomy. 400 and 500 are real failures, 404 means the endpoint is not
// implemented yet and triggers the fallback, anything else is a generic
// payment error. Classification is by status code only; backend codes and
// messages are surfaced, never matched against.
func classifyConfirmError(err error) (failure *models.FailureReason, fallback bool) {
	be, ok := backendapi.AsError(err)
	if !ok {
		// transport or decode failure: nothing user-presentable in err
		return models.NewFailure(models.FailureUnexpected, genericFailureMessage), false
	}
	switch be.Status {
	case http.StatusNotFound:
		return nil, true
	case http.StatusBadRequest, http.StatusInternalServerError:
		message := be.Message
		if be.Code != "" {
			message = be.Code + ": " + be.Message
		}
		return models.NewFailure(models.FailureConfirmation, message), false
	default:
		return models.NewFailure(models.FailurePaymentError, be.Message), false
	}
}

// cleanup deletes the commitment and marks the payment record once a
// confirmation has succeeded. Failures here are logged only: the payment is
// already settled and must not be reported as failed.
func (s *Service) cleanup(ctx context.Context, orderID, status string) {
	if err := s.store.DeleteIntent(ctx, orderID); err != nil {
		s.logger.Error("deleting intent", slog.String("order_id", orderID), slog.Any("err", err))
	}
	if err := s.store.MarkPaymentStatus(ctx, orderID, status); err != nil {
		s.logger.Error("marking payment status", slog.String("order_id", orderID), slog.Any("err", err))
	}
}

func (s *Service) publishSettlement(ctx context.Context, result models.ConfirmationResult, state ConfirmationState) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishSettlement(ctx, result, string(state)); err != nil {
		s.logger.Error("publishing settlement event", slog.String("order_id", result.OrderID), slog.Any("err", err))
	}
}

// FailureRedirectURL builds the failure page URL carrying the reason code
// and a human-readable message.
func (s *Service) FailureRedirectURL(failure *models.FailureReason) string {
	q := url.Values{}
	q.Set("code", failure.Code)
	q.Set("message", failure.Message)
	return s.cfg.FailureURL + "?" + q.Encode()
}

// SuccessRedirectURL builds the success page URL with settlement details.
func (s *Service) SuccessRedirectURL(result models.ConfirmationResult) string {
	q := url.Values{}
	q.Set("orderId", result.OrderID)
	q.Set("amount", strconv.FormatInt(result.Amount, 10))
	q.Set("reservationCompleted", strconv.FormatBool(result.ReservationCompleted))
	return s.cfg.SuccessURL + "?" + q.Encode()
}
