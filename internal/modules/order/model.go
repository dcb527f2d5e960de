// README: Order aggregate, status definitions, and the role-gated transition table.
package order

import (
	"time"

	"yalla/internal/types"
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusAccepted       Status = "accepted"
	StatusPreparing      Status = "preparing"
	StatusReady          Status = "ready"
	StatusDriverAssigned Status = "driver_assigned"
	StatusPickedUp       Status = "picked_up"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

type PaymentMethod string

const (
	PaymentCOD          PaymentMethod = "cod"
	PaymentMTNCash      PaymentMethod = "mtn_cash"
	PaymentSyriatelCash PaymentMethod = "syriatel_cash"
	PaymentShamCash     PaymentMethod = "sham_cash"
)

// Electronic reports whether the method requires a transaction reference at
// creation and restaurant verification afterwards.
func (m PaymentMethod) Electronic() bool {
	switch m {
	case PaymentMTNCash, PaymentSyriatelCash, PaymentShamCash:
		return true
	}
	return false
}

func (m PaymentMethod) Valid() bool {
	return m == PaymentCOD || m.Electronic()
}

type PaymentStatus string

const (
	PayCOD                 PaymentStatus = "cod"
	PayPendingVerification PaymentStatus = "pending_verification"
	PayPaid                PaymentStatus = "paid"
	PayFailed              PaymentStatus = "failed"
)

type DeliveryMode string

const (
	ModeUnset             DeliveryMode = ""
	ModeRestaurantCourier DeliveryMode = "restaurant_courier"
	ModePlatformDriver    DeliveryMode = "platform_driver"
)

func (m DeliveryMode) Valid() bool {
	return m == ModeRestaurantCourier || m == ModePlatformDriver
}

// Role is the closed set of actors that may request a status transition.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleRestaurant Role = "restaurant"
	RoleDriver     Role = "driver"
	// RoleDispatch covers platform dispatch and direct restaurant courier
	// assignment; it is never carried by an end-user token.
	RoleDispatch Role = "dispatch"
)

// Actor is the resolved identity a request acts as. The identity collaborator
// is trusted for the role; this module only enforces the transition table.
type Actor struct {
	ID   types.ID
	Role Role
}

// Item is a priced snapshot of a menu line taken at creation time. The order
// never re-reads the live menu.
type Item struct {
	MenuItemID types.ID    `json:"menu_item_id"`
	Name       string      `json:"name"`
	Price      types.Money `json:"price"`
	Quantity   int         `json:"quantity"`
	Notes      string      `json:"notes,omitempty"`
	Subtotal   types.Money `json:"subtotal"`
}

// Address is the delivery address snapshot frozen at creation. Location is
// optional; without it live tracking falls back to the restaurant leg only.
type Address struct {
	Label    string       `json:"label"`
	Line     string       `json:"line"`
	Area     string       `json:"area,omitempty"`
	Location *types.Point `json:"location,omitempty"`
}

type Order struct {
	ID             types.ID
	CustomerID     types.ID
	RestaurantID   types.ID
	RestaurantName string
	DriverID       *types.ID
	DriverName     string
	DriverPhone    string
	DriverType     DeliveryMode
	Status         Status
	DeliveryMode   DeliveryMode
	PaymentMethod  PaymentMethod
	PaymentStatus  PaymentStatus
	PaymentRef     string
	Items          []Item
	Subtotal       types.Money
	DeliveryFee    types.Money
	Total          types.Money
	Address        Address
	RecipientName  string
	RecipientPhone string
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Assigned reports whether a driver currently holds the order.
func (o *Order) Assigned() bool {
	return o.DriverID != nil && *o.DriverID != ""
}

type transition struct {
	role     Role
	from, to Status
}

// allowedTransitions is the full role-gated table. Any (role, from, to)
// triple not present here is an invalid transition; there are no scattered
// per-handler status checks.
var allowedTransitions = map[transition]bool{
	// restaurant: accept, advance through the kitchen, or cancel before
	// preparation starts
	{RoleRestaurant, StatusPending, StatusAccepted}:   true,
	{RoleRestaurant, StatusPending, StatusPreparing}:  true,
	{RoleRestaurant, StatusPending, StatusReady}:      true,
	{RoleRestaurant, StatusPending, StatusCancelled}:  true,
	{RoleRestaurant, StatusAccepted, StatusPreparing}: true,
	{RoleRestaurant, StatusAccepted, StatusReady}:     true,
	{RoleRestaurant, StatusAccepted, StatusCancelled}: true,
	{RoleRestaurant, StatusPreparing, StatusReady}:    true,

	// dispatch: claim arbitration or direct courier assignment
	{RoleDispatch, StatusReady, StatusDriverAssigned}: true,

	// driver: the delivery legs
	{RoleDriver, StatusDriverAssigned, StatusPickedUp}:  true,
	{RoleDriver, StatusPickedUp, StatusOutForDelivery}:  true,
	{RoleDriver, StatusOutForDelivery, StatusDelivered}: true,

	// customer: self-service cancel before the kitchen starts
	{RoleCustomer, StatusPending, StatusCancelled}:  true,
	{RoleCustomer, StatusAccepted, StatusCancelled}: true,
}

// CanTransition reports whether the given role may move an order from one
// status to another.
func CanTransition(role Role, from, to Status) bool {
	return allowedTransitions[transition{role, from, to}]
}

// AllStatuses is used by exhaustive table tests.
var AllStatuses = []Status{
	StatusPending, StatusAccepted, StatusPreparing, StatusReady,
	StatusDriverAssigned, StatusPickedUp, StatusOutForDelivery,
	StatusDelivered, StatusCancelled,
}
