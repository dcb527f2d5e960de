// README: Order store backed by PostgreSQL; conditional writes are the only mutation path for contested fields.
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"yalla/internal/types"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const orderColumns = `
	id, customer_id, restaurant_id, restaurant_name,
	driver_id, driver_name, driver_phone, driver_type,
	order_status, delivery_mode, payment_method, payment_status, payment_ref,
	items, subtotal, delivery_fee, total,
	address, recipient_name, recipient_phone, notes,
	created_at, updated_at`

func (s *PGStore) Create(ctx context.Context, o *Order) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO orders (
			id, customer_id, restaurant_id, restaurant_name,
			driver_id, driver_name, driver_phone, driver_type,
			order_status, delivery_mode, payment_method, payment_status, payment_ref,
			items, subtotal, delivery_fee, total,
			address, recipient_name, recipient_phone, notes,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			NULL, '', '', '',
			$5, $6, $7, $8, $9,
			$10, $11, $12, $13,
			$14, $15, $16, $17,
			$18, $19
		)`,
		string(o.ID), string(o.CustomerID), string(o.RestaurantID), o.RestaurantName,
		string(o.Status), string(o.DeliveryMode), string(o.PaymentMethod), string(o.PaymentStatus), o.PaymentRef,
		o.Items, o.Subtotal.Amount, o.DeliveryFee.Amount, o.Total.Amount,
		o.Address, o.RecipientName, o.RecipientPhone, o.Notes,
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, string(id))
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return o, nil
}

// UpdateStatus applies a compare-and-swap on the status column, optionally
// flipping payment to paid and recording the delivery mode in the same write.
func (s *PGStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status, w statusWrite) (bool, error) {
	n, err := s.execRetry(ctx, `
		UPDATE orders
		SET order_status = $1,
		    payment_status = CASE WHEN $2 THEN 'paid' ELSE payment_status END,
		    delivery_mode = CASE WHEN $3 <> '' THEN $3 ELSE delivery_mode END,
		    updated_at = now()
		WHERE id = $4 AND order_status = $5`,
		string(to), w.MarkPaid, string(w.SetMode), string(id), string(from),
	)
	if err != nil {
		return false, fmt.Errorf("update status %s: %w", id, err)
	}
	return n == 1, nil
}

// Claim is the race arbiter: predicate and field-set in one atomic write.
// The store's per-row write serialization guarantees at most one caller sees
// RowsAffected == 1.
func (s *PGStore) Claim(ctx context.Context, id types.ID, d DriverInfo) (bool, error) {
	n, err := s.execRetry(ctx, `
		UPDATE orders
		SET driver_id = $1,
		    driver_name = $2,
		    driver_phone = $3,
		    driver_type = 'platform_driver',
		    order_status = 'driver_assigned',
		    updated_at = now()
		WHERE id = $4
		  AND order_status IN ('ready', 'preparing')
		  AND delivery_mode = 'platform_driver'
		  AND (driver_id IS NULL OR driver_id = '')`,
		string(d.ID), d.Name, d.Phone, string(id),
	)
	if err != nil {
		return false, fmt.Errorf("claim order %s: %w", id, err)
	}
	return n == 1, nil
}

func (s *PGStore) AssignCourier(ctx context.Context, id types.ID, d DriverInfo) (bool, error) {
	n, err := s.execRetry(ctx, `
		UPDATE orders
		SET driver_id = $1,
		    driver_name = $2,
		    driver_phone = $3,
		    driver_type = 'restaurant_courier',
		    delivery_mode = 'restaurant_courier',
		    order_status = CASE WHEN order_status = 'ready' THEN 'driver_assigned' ELSE order_status END,
		    updated_at = now()
		WHERE id = $4
		  AND order_status IN ('pending', 'accepted', 'preparing', 'ready')
		  AND (driver_id IS NULL OR driver_id = '')`,
		string(d.ID), d.Name, d.Phone, string(id),
	)
	if err != nil {
		return false, fmt.Errorf("assign courier %s: %w", id, err)
	}
	return n == 1, nil
}

func (s *PGStore) RequestPlatform(ctx context.Context, id types.ID) (bool, error) {
	n, err := s.execRetry(ctx, `
		UPDATE orders
		SET delivery_mode = 'platform_driver',
		    driver_id = NULL,
		    driver_name = '',
		    driver_phone = '',
		    driver_type = '',
		    updated_at = now()
		WHERE id = $1 AND order_status IN ('preparing', 'ready')`,
		string(id),
	)
	if err != nil {
		return false, fmt.Errorf("request platform %s: %w", id, err)
	}
	return n == 1, nil
}

func (s *PGStore) ClearDriver(ctx context.Context, id types.ID) (bool, error) {
	n, err := s.execRetry(ctx, `
		UPDATE orders
		SET driver_id = NULL,
		    driver_name = '',
		    driver_phone = '',
		    driver_type = '',
		    order_status = 'ready',
		    updated_at = now()
		WHERE id = $1 AND order_status IN ('ready', 'driver_assigned')`,
		string(id),
	)
	if err != nil {
		return false, fmt.Errorf("clear driver %s: %w", id, err)
	}
	return n == 1, nil
}

func (s *PGStore) ConfirmPayment(ctx context.Context, id types.ID) (bool, error) {
	n, err := s.execRetry(ctx, `
		UPDATE orders
		SET payment_status = 'paid', updated_at = now()
		WHERE id = $1 AND payment_status = 'pending_verification'`,
		string(id),
	)
	if err != nil {
		return false, fmt.Errorf("confirm payment %s: %w", id, err)
	}
	return n == 1, nil
}

// RejectPayment fails the payment and cancels the order in one statement;
// the two fields can never diverge.
func (s *PGStore) RejectPayment(ctx context.Context, id types.ID) (bool, error) {
	n, err := s.execRetry(ctx, `
		UPDATE orders
		SET payment_status = 'failed', order_status = 'cancelled', updated_at = now()
		WHERE id = $1 AND payment_status = 'pending_verification'`,
		string(id),
	)
	if err != nil {
		return false, fmt.Errorf("reject payment %s: %w", id, err)
	}
	return n == 1, nil
}

func (s *PGStore) ListByCustomer(ctx context.Context, customerID types.ID, limit int) ([]*Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE customer_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		string(customerID), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list by customer: %w", err)
	}
	return scanOrders(rows)
}

func (s *PGStore) ListByRestaurant(ctx context.Context, restaurantID types.ID, statuses []Status, limit int) ([]*Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE restaurant_id = $1 AND order_status = ANY($2)
		ORDER BY created_at DESC
		LIMIT $3`,
		string(restaurantID), statusStrings(statuses), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list by restaurant: %w", err)
	}
	return scanOrders(rows)
}

func (s *PGStore) ListByDriver(ctx context.Context, driverID types.ID, statuses []Status, limit int) ([]*Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE driver_id = $1 AND order_status = ANY($2)
		ORDER BY created_at DESC
		LIMIT $3`,
		string(driverID), statusStrings(statuses), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list by driver: %w", err)
	}
	return scanOrders(rows)
}

// ListClaimableByCity applies the same predicate as Claim so drivers only see
// orders they could still win.
func (s *PGStore) ListClaimableByCity(ctx context.Context, cityID string, limit int) ([]*Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+qualifiedOrderColumns+`
		FROM orders o
		JOIN restaurants r ON r.id = o.restaurant_id
		WHERE o.order_status IN ('ready', 'preparing')
		  AND o.delivery_mode = 'platform_driver'
		  AND (o.driver_id IS NULL OR o.driver_id = '')
		  AND r.city_id = $1
		ORDER BY o.created_at ASC
		LIMIT $2`,
		cityID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list claimable: %w", err)
	}
	return scanOrders(rows)
}

func (s *PGStore) CountActiveByDriver(ctx context.Context, driverID types.ID) (int, error) {
	row := s.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM orders
		WHERE driver_id = $1
		  AND order_status IN ('driver_assigned', 'picked_up', 'out_for_delivery')`,
		string(driverID),
	)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count active by driver: %w", err)
	}
	return n, nil
}

func (s *PGStore) DriverStats(ctx context.Context, driverID types.ID, since time.Time) (int, int64, error) {
	row := s.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(delivery_fee), 0)
		FROM orders
		WHERE driver_id = $1 AND order_status = 'delivered' AND updated_at >= $2`,
		string(driverID), since,
	)
	var deliveries int
	var earnings int64
	if err := row.Scan(&deliveries, &earnings); err != nil {
		return 0, 0, fmt.Errorf("driver stats: %w", err)
	}
	return deliveries, earnings, nil
}

const (
	retryAttempts  = 3
	retryBaseDelay = 50 * time.Millisecond
)

// execRetry runs a conditional write, retrying transient store faults a
// bounded number of times. Retrying is safe because every statement passed
// here re-checks its predicate against current state.
func (s *PGStore) execRetry(ctx context.Context, sql string, args ...any) (int64, error) {
	return withRetry(ctx, func() (int64, error) {
		tag, err := s.db.Exec(ctx, sql, args...)
		if err != nil {
			return 0, err
		}
		return tag.RowsAffected(), nil
	})
}

func withRetry(ctx context.Context, op func() (int64, error)) (int64, error) {
	var lastErr error
	delay := retryBaseDelay
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		n, err := op()
		if err == nil {
			return n, nil
		}
		lastErr = err
		if ctx.Err() != nil || attempt == retryAttempts || !isTransient(err) {
			break
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return 0, lastErr
		case <-t.C:
		}
		delay *= 2
	}
	if isTransient(lastErr) {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
	}
	return 0, lastErr
}

func isTransient(err error) bool {
	return pgconn.SafeToRetry(err) || pgconn.Timeout(err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var o Order
	var driverID *string
	var driverType, deliveryMode string
	var subtotal, deliveryFee, total int64

	err := row.Scan(
		&o.ID, &o.CustomerID, &o.RestaurantID, &o.RestaurantName,
		&driverID, &o.DriverName, &o.DriverPhone, &driverType,
		&o.Status, &deliveryMode, &o.PaymentMethod, &o.PaymentStatus, &o.PaymentRef,
		&o.Items, &subtotal, &deliveryFee, &total,
		&o.Address, &o.RecipientName, &o.RecipientPhone, &o.Notes,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if driverID != nil && *driverID != "" {
		d := types.ID(*driverID)
		o.DriverID = &d
	}
	o.DriverType = DeliveryMode(driverType)
	o.DeliveryMode = DeliveryMode(deliveryMode)
	o.Subtotal = types.SYP(subtotal)
	o.DeliveryFee = types.SYP(deliveryFee)
	o.Total = types.SYP(total)
	return &o, nil
}

func scanOrders(rows pgx.Rows) ([]*Order, error) {
	defer rows.Close()
	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}

const qualifiedOrderColumns = `
	o.id, o.customer_id, o.restaurant_id, o.restaurant_name,
	o.driver_id, o.driver_name, o.driver_phone, o.driver_type,
	o.order_status, o.delivery_mode, o.payment_method, o.payment_status, o.payment_ref,
	o.items, o.subtotal, o.delivery_fee, o.total,
	o.address, o.recipient_name, o.recipient_phone, o.notes,
	o.created_at, o.updated_at`
