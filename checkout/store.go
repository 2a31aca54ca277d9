package checkout

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alovak/checkout-playground/checkout/models"
	"github.com/jackc/pgconn"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

var (
	ErrNotFound = fmt.Errorf("not found")
	ErrConflict = fmt.Errorf("conflict")
	// ErrCorrupt marks a stored intent that no longer parses. Callers treat
	// it as absent: a broken commitment degrades to "skip cross-check", it
	// never blocks the customer.
	ErrCorrupt = fmt.Errorf("corrupt record")
)

// Store holds the pre-redirect commitments, keyed per orderId. It is
// advisory, not the source of truth: the backend ledger stays authoritative,
// the store only flags tampering on callback.
//
// Backends: in-memory (tests), Postgres, or Redis with a TTL. One of db/rdb
// set selects the backend; both nil means memory.
type Store struct {
	mu       sync.RWMutex
	intents  map[string]models.PaymentIntent
	payments map[string]models.PaymentRecord

	db  *sql.DB
	rdb *redis.Client
	ttl time.Duration
}

func NewStore() *Store {
	return &Store{
		intents:  make(map[string]models.PaymentIntent),
		payments: make(map[string]models.PaymentRecord),
	}
}

// NewPGStore constructs a Postgres-backed store.
func NewPGStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// NewRedisStore constructs a Redis-backed store. Keys expire after ttl so
// abandoned checkouts clean themselves up.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Store{rdb: rdb, ttl: ttl}
}

func intentKey(orderID string) string  { return "checkout:intent:" + orderID }
func paymentKey(orderID string) string { return "checkout:payment:" + orderID }

// PutIntent writes the commitment for orderID, overwriting any prior value.
// Must complete before control leaves for the external gateway.
func (s *Store) PutIntent(ctx context.Context, intent models.PaymentIntent) error {
	if s.db != nil {
		_, err := s.db.ExecContext(ctx, `
            INSERT INTO checkout.payment_intents(order_id, reservation_id, amount, discount_id, used_point_amount, created_at)
            VALUES ($1,$2,$3,$4,$5, now())
            ON CONFLICT (order_id) DO UPDATE
               SET reservation_id = excluded.reservation_id,
                   amount = excluded.amount,
                   discount_id = excluded.discount_id,
                   used_point_amount = excluded.used_point_amount
        `, intent.OrderID, intent.ReservationID, intent.Amount, nullable(intent.DiscountID), intent.UsedPointAmount)
		return err
	}
	if s.rdb != nil {
		b, err := json.Marshal(intent)
		if err != nil {
			return fmt.Errorf("marshal intent: %w", err)
		}
		return s.rdb.Set(ctx, intentKey(intent.OrderID), b, s.ttl).Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents[intent.OrderID] = intent
	return nil
}

// GetIntent reads the commitment for orderID. ErrNotFound for an absent
// record, ErrCorrupt for one that no longer parses.
func (s *Store) GetIntent(ctx context.Context, orderID string) (models.PaymentIntent, error) {
	if s.db != nil {
		row := s.db.QueryRowContext(ctx, `
            SELECT order_id, reservation_id, amount, coalesce(discount_id, ''), used_point_amount
              FROM checkout.payment_intents WHERE order_id=$1
        `, orderID)
		var intent models.PaymentIntent
		if err := row.Scan(&intent.OrderID, &intent.ReservationID, &intent.Amount, &intent.DiscountID, &intent.UsedPointAmount); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return models.PaymentIntent{}, ErrNotFound
			}
			return models.PaymentIntent{}, err
		}
		return intent, nil
	}
	if s.rdb != nil {
		b, err := s.rdb.Get(ctx, intentKey(orderID)).Bytes()
		if errors.Is(err, redis.Nil) {
			return models.PaymentIntent{}, ErrNotFound
		}
		if err != nil {
			return models.PaymentIntent{}, err
		}
		var intent models.PaymentIntent
		if err := json.Unmarshal(b, &intent); err != nil {
			return models.PaymentIntent{}, ErrCorrupt
		}
		return intent, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	intent, ok := s.intents[orderID]
	if !ok {
		return models.PaymentIntent{}, ErrNotFound
	}
	return intent, nil
}

// DeleteIntent removes the commitment once confirmation reaches a terminal
// state, so a page reload cannot replay against a stale value. Deleting an
// absent intent is not an error.
func (s *Store) DeleteIntent(ctx context.Context, orderID string) error {
	if s.db != nil {
		_, err := s.db.ExecContext(ctx, `DELETE FROM checkout.payment_intents WHERE order_id=$1`, orderID)
		return err
	}
	if s.rdb != nil {
		return s.rdb.Del(ctx, intentKey(orderID)).Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.intents, orderID)
	return nil
}

// PutPayment records the backend's payment-processing identifier for
// orderID. Order ids are fresh per prepare, so a duplicate insert means two
// flows collided on the same id: that surfaces as ErrConflict.
func (s *Store) PutPayment(ctx context.Context, record models.PaymentRecord) error {
	if s.db != nil {
		_, err := s.db.ExecContext(ctx, `
            INSERT INTO checkout.payment_records(order_id, payment_id, reservation_id, status, created_at)
            VALUES ($1,$2,$3,$4, now())
        `, record.OrderID, record.PaymentID, record.ReservationID, record.Status)
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	if s.rdb != nil {
		b, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal payment record: %w", err)
		}
		ok, err := s.rdb.SetNX(ctx, paymentKey(record.OrderID), b, s.ttl).Result()
		if err != nil {
			return err
		}
		if !ok {
			return ErrConflict
		}
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.payments[record.OrderID]; exists {
		return ErrConflict
	}
	s.payments[record.OrderID] = record
	return nil
}

// GetPayment reads the payment record for orderID.
func (s *Store) GetPayment(ctx context.Context, orderID string) (models.PaymentRecord, error) {
	if s.db != nil {
		row := s.db.QueryRowContext(ctx, `
            SELECT order_id, payment_id, reservation_id, status
              FROM checkout.payment_records WHERE order_id=$1
        `, orderID)
		var record models.PaymentRecord
		if err := row.Scan(&record.OrderID, &record.PaymentID, &record.ReservationID, &record.Status); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return models.PaymentRecord{}, ErrNotFound
			}
			return models.PaymentRecord{}, err
		}
		return record, nil
	}
	if s.rdb != nil {
		b, err := s.rdb.Get(ctx, paymentKey(orderID)).Bytes()
		if errors.Is(err, redis.Nil) {
			return models.PaymentRecord{}, ErrNotFound
		}
		if err != nil {
			return models.PaymentRecord{}, err
		}
		var record models.PaymentRecord
		if err := json.Unmarshal(b, &record); err != nil {
			return models.PaymentRecord{}, ErrCorrupt
		}
		return record, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.payments[orderID]
	if !ok {
		return models.PaymentRecord{}, ErrNotFound
	}
	return record, nil
}

// MarkPaymentStatus updates the stored payment record status after
// confirmation. Best-effort bookkeeping; a missing record is ignored.
func (s *Store) MarkPaymentStatus(ctx context.Context, orderID, status string) error {
	if s.db != nil {
		_, err := s.db.ExecContext(ctx, `UPDATE checkout.payment_records SET status=$2 WHERE order_id=$1`, orderID, status)
		return err
	}
	if s.rdb != nil {
		record, err := s.GetPayment(ctx, orderID)
		if err != nil {
			if errors.Is(err, ErrNotFound) || errors.Is(err, ErrCorrupt) {
				return nil
			}
			return err
		}
		record.Status = status
		b, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal payment record: %w", err)
		}
		return s.rdb.Set(ctx, paymentKey(orderID), b, s.ttl).Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.payments[orderID]; ok {
		record.Status = status
		s.payments[orderID] = record
	}
	return nil
}

// Ping reports backend readiness.
func (s *Store) Ping(ctx context.Context) error {
	if s.db != nil {
		return s.db.PingContext(ctx)
	}
	if s.rdb != nil {
		return s.rdb.Ping(ctx).Err()
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	var pe *pq.Error
	if errors.As(err, &pe) && pe.Code == "23505" {
		return true
	}
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "23505" {
		return true
	}
	return false
}
