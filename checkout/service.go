package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alovak/checkout-playground/checkout/models"
	"github.com/alovak/checkout-playground/internal/backendapi"
	"github.com/alovak/checkout-playground/internal/orderid"
	"github.com/alovak/checkout-playground/internal/pricing"
	"golang.org/x/exp/slog"
)

// Service owns the payment confirmation and settlement workflow.
type Service struct {
	store   *Store
	backend *backendapi.Client
	events  *Publisher
	logger  *slog.Logger
	cfg     *Config
}

func NewService(store *Store, backend *backendapi.Client, events *Publisher, logger *slog.Logger, cfg *Config) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Service{
		store:   store,
		backend: backend,
		events:  events,
		logger:  logger,
		cfg:     cfg,
	}
}

// CheckoutContext is the initial load for a checkout: the discount catalog
// and the customer's point balance.
type CheckoutContext struct {
	Discounts []models.DiscountOffer     `json:"discounts"`
	Points    models.PointLedgerSnapshot `json:"points"`
}

// LoadCheckoutContext fetches discounts and point balance as two concurrent
// requests awaited jointly. If either fails the whole load degrades to
// empty/zero defaults so checkout is never blocked; only authentication
// failures propagate.
func (s *Service) LoadCheckoutContext(ctx context.Context) (CheckoutContext, error) {
	var (
		wg          sync.WaitGroup
		discounts   []models.DiscountOffer
		points      models.PointLedgerSnapshot
		discountErr error
		pointsErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		discounts, discountErr = s.backend.GetDiscountList(ctx)
	}()
	go func() {
		defer wg.Done()
		points, pointsErr = s.backend.GetPointBalance(ctx)
	}()
	wg.Wait()

	if pointsErr != nil {
		// the client only propagates auth failures; everything else is
		// already folded into a zero balance
		return CheckoutContext{}, fmt.Errorf("loading point balance: %w", pointsErr)
	}
	if discountErr != nil {
		s.logger.Info("checkout context load failed, using defaults", slog.Any("err", discountErr))
		return CheckoutContext{Discounts: []models.DiscountOffer{}}, nil
	}
	return CheckoutContext{Discounts: discounts, Points: points}, nil
}

type QuoteRequest struct {
	OriginalAmount  int64                 `json:"original_amount"`
	Discount        *models.DiscountOffer `json:"discount,omitempty"`
	UsedPointAmount int64                 `json:"used_point_amount"`
	PointBalance    int64                 `json:"point_balance"`
}

type QuoteResponse struct {
	OriginalAmount  int64 `json:"original_amount"`
	DiscountAmount  int64 `json:"discount_amount"`
	UsedPointAmount int64 `json:"used_point_amount"`
	FinalAmount     int64 `json:"final_amount"`
}

// Quote computes the payable amount for the current selection. Pure, no side
// effects: the UI calls it on every change.
func (s *Service) Quote(req QuoteRequest) (QuoteResponse, error) {
	if req.OriginalAmount < 0 {
		return QuoteResponse{}, fmt.Errorf("original amount must not be negative")
	}
	discount := pricing.DiscountAmount(req.OriginalAmount, req.Discount)
	afterDiscount := req.OriginalAmount - discount
	points := pricing.ClampPoints(req.UsedPointAmount, req.PointBalance, afterDiscount)
	return QuoteResponse{
		OriginalAmount:  req.OriginalAmount,
		DiscountAmount:  discount,
		UsedPointAmount: points,
		FinalAmount:     pricing.ComputeFinal(req.OriginalAmount, req.Discount, points),
	}, nil
}

type PrepareRequest struct {
	ReservationID   string `json:"reservation_id"`
	OriginalAmount  int64  `json:"original_amount"`
	DiscountID      string `json:"discount_id,omitempty"`
	UsedPointAmount int64  `json:"used_point_amount"`
}

type PrepareResponse struct {
	OrderID     string `json:"order_id"`
	PaymentID   string `json:"payment_id"`
	FinalAmount int64  `json:"final_amount"`
}

// Prepare computes the final amount, registers the payment with the backend
// and writes the commitment. The intent write is the last step before the
// caller redirects to the gateway.
func (s *Service) Prepare(ctx context.Context, req PrepareRequest) (PrepareResponse, error) {
	if req.ReservationID == "" {
		return PrepareResponse{}, fmt.Errorf("reservation id is required")
	}
	if req.OriginalAmount < 0 {
		return PrepareResponse{}, fmt.Errorf("original amount must not be negative")
	}

	var offer *models.DiscountOffer
	if req.DiscountID != "" {
		found, err := s.findDiscount(ctx, req.DiscountID)
		if err != nil {
			return PrepareResponse{}, err
		}
		offer = found
	}

	points, err := s.backend.GetPointBalance(ctx)
	if err != nil {
		return PrepareResponse{}, fmt.Errorf("loading point balance: %w", err)
	}

	discount := pricing.DiscountAmount(req.OriginalAmount, offer)
	afterDiscount := req.OriginalAmount - discount
	usedPoints := pricing.ClampPoints(req.UsedPointAmount, points.AvailableBalance, afterDiscount)
	final := pricing.ComputeFinal(req.OriginalAmount, offer, usedPoints)

	id, err := orderid.New()
	if err != nil {
		return PrepareResponse{}, fmt.Errorf("generating order id: %w", err)
	}

	record, err := s.backend.SavePaymentBefore(ctx, backendapi.SavePaymentRequest{
		ReservationID:   req.ReservationID,
		OrderID:         id,
		PaymentMethod:   s.cfg.PaymentMethod,
		Currency:        s.cfg.Currency,
		DiscountID:      req.DiscountID,
		UsedPointAmount: usedPoints,
		Amount:          req.OriginalAmount,
		FinalAmount:     final,
	})
	if err != nil {
		return PrepareResponse{}, fmt.Errorf("registering payment: %w", err)
	}

	if err := s.store.PutPayment(ctx, record); err != nil {
		return PrepareResponse{}, fmt.Errorf("storing payment record: %w", err)
	}

	intent := models.PaymentIntent{
		OrderID:         id,
		ReservationID:   req.ReservationID,
		Amount:          final,
		DiscountID:      req.DiscountID,
		UsedPointAmount: usedPoints,
	}
	if err := s.store.PutIntent(ctx, intent); err != nil {
		return PrepareResponse{}, fmt.Errorf("storing payment intent: %w", err)
	}

	s.logger.Info("checkout prepared",
		slog.String("order_id", id),
		slog.String("reservation_id", req.ReservationID),
		slog.Int64("final_amount", final),
	)

	return PrepareResponse{OrderID: id, PaymentID: record.PaymentID, FinalAmount: final}, nil
}

func (s *Service) findDiscount(ctx context.Context, discountID string) (*models.DiscountOffer, error) {
	offers, err := s.backend.GetDiscountList(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading discounts: %w", err)
	}
	for i := range offers {
		if offers[i].ID == discountID {
			return &offers[i], nil
		}
	}
	return nil, fmt.Errorf("discount %s: %w", discountID, ErrNotFound)
}

// lookupIntent reads the commitment for orderID, degrading corrupt or absent
// records to nil. The caller skips the cross-check in that case and backend
// confirmation becomes the sole source of truth.
func (s *Service) lookupIntent(ctx context.Context, orderID string) *models.PaymentIntent {
	intent, err := s.store.GetIntent(ctx, orderID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			s.logger.Warn("no committed intent for callback", slog.String("order_id", orderID))
		case errors.Is(err, ErrCorrupt):
			s.logger.Warn("stored intent is corrupt, skipping cross-check", slog.String("order_id", orderID))
		default:
			s.logger.Error("reading intent", slog.String("order_id", orderID), slog.Any("err", err))
		}
		return nil
	}
	return &intent
}
