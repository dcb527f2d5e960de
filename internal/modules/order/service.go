// README: Order service implements the lifecycle state machine and its side effects.
package order

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"yalla/internal/types"
)

var (
	ErrBadRequest        = errors.New("bad request")
	ErrNotFound          = errors.New("order not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("order state conflict")
	ErrAlreadyTaken      = errors.New("order already taken by another driver")
	ErrRestaurantClosed  = errors.New("restaurant is closed")
	ErrBelowMinOrder     = errors.New("order total below restaurant minimum")
	ErrMissingPaymentRef = errors.New("transaction reference required for electronic payment")
	ErrUnavailable       = errors.New("store temporarily unavailable")
)

// RestaurantInfo is the read-side projection of a restaurant consumed at
// order creation and for ownership checks.
type RestaurantInfo struct {
	ID          types.ID
	OwnerID     types.ID
	Name        string
	CityID      string
	Position    types.Point
	DeliveryFee types.Money
	MinOrder    types.Money
	Open        bool
	// RadiusKm bounds the non-favorite driver listing for this restaurant.
	RadiusKm float64
}

// MenuItemInfo is the priced menu line supplied by the catalog collaborator.
type MenuItemInfo struct {
	ID        types.ID
	Name      string
	Price     types.Money
	Available bool
}

// CustomerInfo supplies recipient fallbacks at creation time.
type CustomerInfo struct {
	ID    types.ID
	Name  string
	Phone string
}

// Catalog is the menu/pricing collaborator. It is read exactly once per
// order, at creation; the order keeps a frozen copy.
type Catalog interface {
	Restaurant(ctx context.Context, id types.ID) (*RestaurantInfo, error)
	RestaurantByOwner(ctx context.Context, ownerID types.ID) (*RestaurantInfo, error)
	MenuItem(ctx context.Context, restaurantID, itemID types.ID) (*MenuItemInfo, error)
	Customer(ctx context.Context, id types.ID) (*CustomerInfo, error)
}

// Notifier is the fire-and-forget notification sink. Delivery failures never
// roll back a state transition.
type Notifier interface {
	Notify(ctx context.Context, userID types.ID, title, body, category string, data map[string]any)
}

// Dispatcher receives post-commit fan-out events for platform-mode orders.
type Dispatcher interface {
	OrderReady(ctx context.Context, o *Order, stillPreparing bool)
}

// DriverInfo is the snapshot written onto an order when a driver is assigned.
type DriverInfo struct {
	ID    types.ID
	Name  string
	Phone string
	Type  DeliveryMode
}

// statusWrite carries the extra fields a status transition may set in the
// same conditional write.
type statusWrite struct {
	// MarkPaid flips payment_status to paid together with the status
	// change (COD orders reaching delivered).
	MarkPaid bool
	// SetMode records the delivery mode chosen when readying the order.
	SetMode DeliveryMode
}

// Store is the persisted order aggregate. Every method that participates in
// the claim race is a single predicated write returning whether it applied.
type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id types.ID) (*Order, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, w statusWrite) (bool, error)
	Claim(ctx context.Context, id types.ID, d DriverInfo) (bool, error)
	AssignCourier(ctx context.Context, id types.ID, d DriverInfo) (bool, error)
	RequestPlatform(ctx context.Context, id types.ID) (bool, error)
	ClearDriver(ctx context.Context, id types.ID) (bool, error)
	ConfirmPayment(ctx context.Context, id types.ID) (bool, error)
	RejectPayment(ctx context.Context, id types.ID) (bool, error)
	ListByCustomer(ctx context.Context, customerID types.ID, limit int) ([]*Order, error)
	ListByRestaurant(ctx context.Context, restaurantID types.ID, statuses []Status, limit int) ([]*Order, error)
	ListByDriver(ctx context.Context, driverID types.ID, statuses []Status, limit int) ([]*Order, error)
	ListClaimableByCity(ctx context.Context, cityID string, limit int) ([]*Order, error)
	CountActiveByDriver(ctx context.Context, driverID types.ID) (int, error)
	DriverStats(ctx context.Context, driverID types.ID, since time.Time) (deliveries int, earnings int64, err error)
}

type Service struct {
	store      Store
	catalog    Catalog
	notifier   Notifier
	dispatcher Dispatcher
	log        *slog.Logger
}

func NewService(store Store, catalog Catalog, notifier Notifier, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, catalog: catalog, notifier: notifier, log: log}
}

// AttachDispatcher wires the dispatch engine after construction; the engine
// itself depends on this service for claim arbitration.
func (s *Service) AttachDispatcher(d Dispatcher) { s.dispatcher = d }

type ItemInput struct {
	MenuItemID types.ID
	Quantity   int
	Notes      string
}

type CreateCommand struct {
	CustomerID     types.ID
	RestaurantID   types.ID
	Items          []ItemInput
	PaymentMethod  PaymentMethod
	PaymentRef     string
	Address        Address
	RecipientName  string
	RecipientPhone string
	Notes          string
}

// Create validates the command against the live catalog, freezes a priced
// snapshot, and persists the order in status pending.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Order, error) {
	if cmd.CustomerID == "" || cmd.RestaurantID == "" || len(cmd.Items) == 0 {
		return nil, ErrBadRequest
	}
	if !cmd.PaymentMethod.Valid() {
		return nil, ErrBadRequest
	}

	rest, err := s.catalog.Restaurant(ctx, cmd.RestaurantID)
	if err != nil {
		return nil, err
	}
	if rest == nil {
		return nil, ErrNotFound
	}
	if !rest.Open {
		return nil, ErrRestaurantClosed
	}

	items := make([]Item, 0, len(cmd.Items))
	var subtotal int64
	for _, in := range cmd.Items {
		if in.Quantity <= 0 {
			return nil, ErrBadRequest
		}
		mi, err := s.catalog.MenuItem(ctx, cmd.RestaurantID, in.MenuItemID)
		if err != nil {
			return nil, err
		}
		if mi == nil || !mi.Available {
			return nil, ErrNotFound
		}
		lineTotal := mi.Price.Amount * int64(in.Quantity)
		items = append(items, Item{
			MenuItemID: mi.ID,
			Name:       mi.Name,
			Price:      mi.Price,
			Quantity:   in.Quantity,
			Notes:      in.Notes,
			Subtotal:   types.SYP(lineTotal),
		})
		subtotal += lineTotal
	}
	if rest.MinOrder.Amount > 0 && subtotal < rest.MinOrder.Amount {
		return nil, ErrBelowMinOrder
	}

	payStatus := PayCOD
	if cmd.PaymentMethod.Electronic() {
		if cmd.PaymentRef == "" {
			return nil, ErrMissingPaymentRef
		}
		payStatus = PayPendingVerification
	}

	recipientName, recipientPhone := cmd.RecipientName, cmd.RecipientPhone
	if recipientName == "" || recipientPhone == "" {
		if cust, err := s.catalog.Customer(ctx, cmd.CustomerID); err == nil && cust != nil {
			if recipientName == "" {
				recipientName = cust.Name
			}
			if recipientPhone == "" {
				recipientPhone = cust.Phone
			}
		}
	}

	now := time.Now().UTC()
	o := &Order{
		ID:             newID(),
		CustomerID:     cmd.CustomerID,
		RestaurantID:   rest.ID,
		RestaurantName: rest.Name,
		Status:         StatusPending,
		PaymentMethod:  cmd.PaymentMethod,
		PaymentStatus:  payStatus,
		PaymentRef:     cmd.PaymentRef,
		Items:          items,
		Subtotal:       types.SYP(subtotal),
		DeliveryFee:    rest.DeliveryFee,
		Total:          types.SYP(subtotal + rest.DeliveryFee.Amount),
		Address:        cmd.Address,
		RecipientName:  recipientName,
		RecipientPhone: recipientPhone,
		Notes:          cmd.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Create(ctx, o); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, rest.OwnerID, "New order",
		"You have a new order worth "+formatSYP(o.Total.Amount), categoryNewOrder,
		map[string]any{"order_id": string(o.ID)})
	return o, nil
}

type TransitionCommand struct {
	OrderID types.ID
	Actor   Actor
	Target  Status
	// Mode is honoured only when the restaurant readies the order.
	Mode DeliveryMode
}

// Transition applies a role-gated status change. Restaurant couriers have no
// account of their own, so for restaurant_courier orders the restaurant also
// drives the delivery-leg transitions.
func (s *Service) Transition(ctx context.Context, cmd TransitionCommand) (*Order, error) {
	o, err := s.visibleOrder(ctx, cmd.Actor, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	allowed := CanTransition(cmd.Actor.Role, o.Status, cmd.Target)
	if !allowed && cmd.Actor.Role == RoleRestaurant && o.DeliveryMode == ModeRestaurantCourier {
		allowed = CanTransition(RoleDriver, o.Status, cmd.Target)
	}
	if !allowed {
		return nil, ErrInvalidTransition
	}

	w := statusWrite{}
	if cmd.Target == StatusDelivered && o.PaymentMethod == PaymentCOD {
		w.MarkPaid = true
	}
	if cmd.Target == StatusReady && cmd.Actor.Role == RoleRestaurant && cmd.Mode != ModeUnset {
		if !cmd.Mode.Valid() {
			return nil, ErrBadRequest
		}
		// A pre-assigned order fixed its mode when the driver was recorded;
		// honouring a new mode here would split delivery_mode from
		// driver_type.
		if !o.Assigned() {
			w.SetMode = cmd.Mode
		}
	}

	target := cmd.Target
	if target == StatusReady && o.Assigned() {
		// A driver is already on the order; readying it lands directly on
		// driver_assigned so the delivery legs can follow.
		target = StatusDriverAssigned
	}

	ok, err := s.store.UpdateStatus(ctx, o.ID, o.Status, target, w)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}

	updated, err := s.store.Get(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	s.afterTransition(ctx, updated, cmd.Target == StatusReady)
	return updated, nil
}

// afterTransition emits post-commit side effects: customer copy, driver
// notice or dispatch fan-out for ready orders. The write has already
// succeeded; nothing here can undo it.
func (s *Service) afterTransition(ctx context.Context, o *Order, readied bool) {
	s.notifyCustomerStatus(ctx, o)

	if !readied {
		return
	}
	switch {
	case o.Assigned():
		s.notifier.Notify(ctx, *o.DriverID, "Order ready for pickup",
			"Order from "+o.RestaurantName+" is ready, head to the restaurant",
			categoryOrderReady, map[string]any{"order_id": string(o.ID), "restaurant_name": o.RestaurantName})
	case o.DeliveryMode == ModePlatformDriver && s.dispatcher != nil:
		s.dispatcher.OrderReady(ctx, o, false)
	}
}

// Claim is the conditional-write arbitration for the driver race. At most
// one concurrent caller wins; every loser gets ErrAlreadyTaken. The caller
// (dispatch) has already verified the driver is online.
func (s *Service) Claim(ctx context.Context, orderID types.ID, d DriverInfo) (*Order, error) {
	if orderID == "" || d.ID == "" {
		return nil, ErrBadRequest
	}
	d.Type = ModePlatformDriver
	ok, err := s.store.Claim(ctx, orderID, d)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Expected under contention; not an error condition worth logging.
		return nil, ErrAlreadyTaken
	}

	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if rest, err := s.catalog.Restaurant(ctx, o.RestaurantID); err == nil && rest != nil {
		s.notifier.Notify(ctx, rest.OwnerID, "Driver on the way",
			"Driver "+d.Name+" accepted order #"+shortID(o.ID), categoryDriverAssigned,
			map[string]any{"order_id": string(o.ID), "driver_name": d.Name, "driver_phone": d.Phone})
	}
	s.notifier.Notify(ctx, o.CustomerID, "Driver assigned",
		"Driver "+d.Name+" will pick up your order shortly", categoryOrderUpdate,
		map[string]any{"order_id": string(o.ID)})
	return o, nil
}

// AssignCourier puts one of the restaurant's own couriers on the order. This
// path has a single writer (the restaurant) and is not subject to the race.
func (s *Service) AssignCourier(ctx context.Context, actor Actor, orderID types.ID, courier DriverInfo) (*Order, error) {
	o, err := s.visibleOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if actor.Role != RoleRestaurant {
		return nil, ErrForbidden
	}
	courier.Type = ModeRestaurantCourier
	ok, err := s.store.AssignCourier(ctx, o.ID, courier)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	updated, err := s.store.Get(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, updated.CustomerID, "Driver assigned",
		"Driver "+courier.Name+" will deliver your order", categoryOrderUpdate,
		map[string]any{"order_id": string(updated.ID)})
	return updated, nil
}

// RequestPlatform opens the order to the platform driver pool. Allowed while
// preparing (drivers get a heads-up) or ready (immediate fan-out).
func (s *Service) RequestPlatform(ctx context.Context, actor Actor, orderID types.ID) (*Order, error) {
	o, err := s.visibleOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if actor.Role != RoleRestaurant {
		return nil, ErrForbidden
	}
	if o.Status != StatusPreparing && o.Status != StatusReady {
		return nil, ErrInvalidTransition
	}
	ok, err := s.store.RequestPlatform(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	updated, err := s.store.Get(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	if s.dispatcher != nil {
		s.dispatcher.OrderReady(ctx, updated, updated.Status == StatusPreparing)
	}
	return updated, nil
}

// ReassignDriver clears the current assignment so a new driver can be
// chosen. Forbidden once the order has been picked up.
func (s *Service) ReassignDriver(ctx context.Context, actor Actor, orderID types.ID) (*Order, error) {
	o, err := s.visibleOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if actor.Role != RoleRestaurant {
		return nil, ErrForbidden
	}
	if o.Status != StatusReady && o.Status != StatusDriverAssigned {
		return nil, ErrInvalidTransition
	}

	prevDriver := o.DriverID
	prevType := o.DriverType

	ok, err := s.store.ClearDriver(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}

	if prevDriver != nil && prevType == ModePlatformDriver {
		s.notifier.Notify(ctx, *prevDriver, "Assignment cancelled",
			"You were unassigned from order #"+shortID(o.ID), categoryOrderUpdate,
			map[string]any{"order_id": string(o.ID)})
	}
	return s.store.Get(ctx, o.ID)
}

// ConfirmPayment marks an electronic payment as verified by the restaurant.
func (s *Service) ConfirmPayment(ctx context.Context, actor Actor, orderID types.ID) (*Order, error) {
	o, err := s.visibleOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if actor.Role != RoleRestaurant {
		return nil, ErrForbidden
	}
	if o.PaymentStatus != PayPendingVerification {
		return nil, ErrInvalidTransition
	}
	ok, err := s.store.ConfirmPayment(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	s.notifier.Notify(ctx, o.CustomerID, "Payment confirmed",
		"Your payment for order #"+shortID(o.ID)+" was confirmed", categoryPayment,
		map[string]any{"order_id": string(o.ID)})
	return s.store.Get(ctx, o.ID)
}

// RejectPayment fails the payment and cancels the order in one atomic write;
// there is no observable state where only one of the two fields changed.
func (s *Service) RejectPayment(ctx context.Context, actor Actor, orderID types.ID) (*Order, error) {
	o, err := s.visibleOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if actor.Role != RoleRestaurant {
		return nil, ErrForbidden
	}
	if o.PaymentStatus != PayPendingVerification {
		return nil, ErrInvalidTransition
	}
	ok, err := s.store.RejectPayment(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	s.notifier.Notify(ctx, o.CustomerID, "Payment rejected",
		"Your payment for order #"+shortID(o.ID)+" could not be verified; the order was cancelled",
		categoryPayment, map[string]any{"order_id": string(o.ID)})
	return s.store.Get(ctx, o.ID)
}

// Get returns the order if the actor may see it.
func (s *Service) Get(ctx context.Context, actor Actor, orderID types.ID) (*Order, error) {
	return s.visibleOrder(ctx, actor, orderID)
}

func (s *Service) ListForCustomer(ctx context.Context, customerID types.ID) ([]*Order, error) {
	return s.store.ListByCustomer(ctx, customerID, 50)
}

var activeRestaurantStatuses = []Status{
	StatusPending, StatusAccepted, StatusPreparing, StatusReady,
	StatusDriverAssigned, StatusPickedUp, StatusOutForDelivery,
}

func (s *Service) ListForRestaurant(ctx context.Context, actor Actor) ([]*Order, error) {
	rest, err := s.restaurantFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.store.ListByRestaurant(ctx, rest.ID, activeRestaurantStatuses, 200)
}

func (s *Service) RestaurantHistory(ctx context.Context, actor Actor) ([]*Order, error) {
	rest, err := s.restaurantFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.store.ListByRestaurant(ctx, rest.ID, []Status{StatusDelivered, StatusCancelled}, 100)
}

var activeDriverStatuses = []Status{StatusDriverAssigned, StatusPickedUp, StatusOutForDelivery}

func (s *Service) ListForDriver(ctx context.Context, driverID types.ID) ([]*Order, error) {
	return s.store.ListByDriver(ctx, driverID, activeDriverStatuses, 20)
}

func (s *Service) DriverHistory(ctx context.Context, driverID types.ID) ([]*Order, error) {
	return s.store.ListByDriver(ctx, driverID, []Status{StatusDelivered, StatusCancelled}, 50)
}

// ClaimableByCity lists platform-mode orders an eligible driver could claim.
func (s *Service) ClaimableByCity(ctx context.Context, cityID string) ([]*Order, error) {
	return s.store.ListClaimableByCity(ctx, cityID, 20)
}

// ActiveCount reports how many undelivered orders a driver currently holds.
func (s *Service) ActiveCount(ctx context.Context, driverID types.ID) (int, error) {
	return s.store.CountActiveByDriver(ctx, driverID)
}

// DriverStats summarises a driver's delivered orders and delivery-fee
// earnings for today and all time.
type DriverStats struct {
	TodayDeliveries int
	TodayEarnings   types.Money
	TotalDeliveries int
	TotalEarnings   types.Money
}

func (s *Service) StatsForDriver(ctx context.Context, driverID types.ID) (*DriverStats, error) {
	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	todayCount, todayEarn, err := s.store.DriverStats(ctx, driverID, midnight)
	if err != nil {
		return nil, err
	}
	totalCount, totalEarn, err := s.store.DriverStats(ctx, driverID, time.Time{})
	if err != nil {
		return nil, err
	}
	return &DriverStats{
		TodayDeliveries: todayCount,
		TodayEarnings:   types.SYP(todayEarn),
		TotalDeliveries: totalCount,
		TotalEarnings:   types.SYP(totalEarn),
	}, nil
}

// visibleOrder loads an order scoped to the actor: customers see their own
// orders, restaurants their restaurant's, drivers the ones assigned to them.
// Out-of-scope orders read as not found, never as forbidden.
func (s *Service) visibleOrder(ctx context.Context, actor Actor, orderID types.ID) (*Order, error) {
	if orderID == "" || actor.ID == "" {
		return nil, ErrBadRequest
	}
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch actor.Role {
	case RoleCustomer:
		if o.CustomerID != actor.ID {
			return nil, ErrNotFound
		}
	case RoleRestaurant:
		rest, err := s.restaurantFor(ctx, actor)
		if err != nil {
			return nil, err
		}
		if o.RestaurantID != rest.ID {
			return nil, ErrNotFound
		}
	case RoleDriver:
		if !o.Assigned() || *o.DriverID != actor.ID {
			return nil, ErrNotFound
		}
	case RoleDispatch:
		// dispatch acts platform-wide
	default:
		return nil, ErrForbidden
	}
	return o, nil
}

func (s *Service) restaurantFor(ctx context.Context, actor Actor) (*RestaurantInfo, error) {
	if actor.Role != RoleRestaurant {
		return nil, ErrForbidden
	}
	rest, err := s.catalog.RestaurantByOwner(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if rest == nil {
		return nil, ErrNotFound
	}
	return rest, nil
}

func newID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}

func shortID(id types.ID) string {
	s := string(id)
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
