package backendapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alovak/checkout-playground/checkout/models"
)

// Client talks to the reservation backend. Orders are identified by orderId;
// the gateway's own identifier is paymentKey. Both travel through here on
// confirmation.
type Client struct {
	Base  string
	Token string
	HTTP  *http.Client
}

func New(base, token string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{Base: strings.TrimRight(base, "/"), Token: token, HTTP: hc}
}

// Error is a non-2xx backend response. Status drives the confirmation
// classification; Code and Message come from the backend error body and are
// surfaced to the user, never matched against.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend status=%d code=%s message=%s", e.Status, e.Code, e.Message)
}

// AsError unwraps a backend error, if err is one.
func AsError(err error) (*Error, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

func (c *Client) newError(resp *http.Response) *Error {
	be := &Error{Status: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		be.Code = payload.Code
		be.Message = payload.Message
		return be
	}
	be.Message = strings.TrimSpace(string(body))
	return be
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return c.newError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}

// GetDiscountList fetches the discount catalog. A missing catalog endpoint
// yields an empty list, never an error: discounts must not block checkout.
func (c *Client) GetDiscountList(ctx context.Context) ([]models.DiscountOffer, error) {
	var offers []models.DiscountOffer
	err := c.do(ctx, http.MethodGet, "/api/discounts", nil, &offers)
	if be, ok := AsError(err); ok && be.Status == http.StatusNotFound {
		return []models.DiscountOffer{}, nil
	}
	if err != nil {
		return nil, err
	}
	if offers == nil {
		// a 200 with a JSON null body still means "no discounts"
		offers = []models.DiscountOffer{}
	}
	return offers, nil
}

// GetPointBalance fetches the customer's loyalty balance. Any failure
// defaults to a zero balance except authentication failures, which propagate.
func (c *Client) GetPointBalance(ctx context.Context) (models.PointLedgerSnapshot, error) {
	var payload struct {
		Balance int64 `json:"balance"`
	}
	err := c.do(ctx, http.MethodGet, "/api/points/balance", nil, &payload)
	if err != nil {
		if be, ok := AsError(err); ok && (be.Status == http.StatusUnauthorized || be.Status == http.StatusForbidden) {
			return models.PointLedgerSnapshot{}, err
		}
		return models.PointLedgerSnapshot{AvailableBalance: 0}, nil
	}
	return models.PointLedgerSnapshot{AvailableBalance: payload.Balance}, nil
}

type SavePaymentRequest struct {
	ReservationID   string `json:"reservation_id"`
	OrderID         string `json:"order_id"`
	PaymentMethod   string `json:"payment_method"`
	Currency        string `json:"currency"`
	DiscountID      string `json:"discount_id,omitempty"`
	UsedPointAmount int64  `json:"used_point_amount"`
	Amount          int64  `json:"amount"`
	FinalAmount     int64  `json:"final_amount"`
}

// SavePaymentBefore registers the payment with the backend ahead of the
// gateway redirect. While the endpoint is absent (404) a placeholder
// paymentId is synthesized so the flow can proceed against an unfinished
// backend.
func (c *Client) SavePaymentBefore(ctx context.Context, req SavePaymentRequest) (models.PaymentRecord, error) {
	var record models.PaymentRecord
	err := c.do(ctx, http.MethodPost, "/api/payments/before", req, &record)
	if be, ok := AsError(err); ok && be.Status == http.StatusNotFound {
		return models.PaymentRecord{
			PaymentID:     fmt.Sprintf("LOCAL-%d", time.Now().UnixMilli()),
			OrderID:       req.OrderID,
			ReservationID: req.ReservationID,
			Status:        models.PaymentStatusReady,
		}, nil
	}
	if err != nil {
		return models.PaymentRecord{}, err
	}
	if record.ReservationID == "" {
		record.ReservationID = req.ReservationID
	}
	return record, nil
}

type ConfirmPaymentRequest struct {
	PaymentID   string `json:"payment_id"`
	OrderID     string `json:"order_id"`
	PaymentKey  string `json:"payment_key"`
	FinalAmount int64  `json:"final_amount"`
}

type ConfirmPaymentResponse struct {
	ReservationID string `json:"reservation_id,omitempty"`
	Status        string `json:"status"`
}

// ConfirmPayment finalizes a gateway payment against the backend ledger.
// Non-2xx responses come back as *Error so the caller can classify on status.
func (c *Client) ConfirmPayment(ctx context.Context, req ConfirmPaymentRequest) (ConfirmPaymentResponse, error) {
	var resp ConfirmPaymentResponse
	if err := c.do(ctx, http.MethodPost, "/api/payments/confirm", req, &resp); err != nil {
		return ConfirmPaymentResponse{}, err
	}
	return resp, nil
}

// CompleteReservation marks the reservation as finalized. Best-effort for
// callers: they log failures and move on.
func (c *Client) CompleteReservation(ctx context.Context, reservationID string) error {
	return c.do(ctx, http.MethodPost, "/api/reservations/"+reservationID+"/complete", struct{}{}, nil)
}
