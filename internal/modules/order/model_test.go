// README: Transition-table unit tests; the table is the single source of truth for status changes.
package order

import (
	"testing"

	"yalla/internal/types"
)

// ---------------------------------------------------------------------------
// Unit tests: CanTransition (pure table lookup)
// ---------------------------------------------------------------------------

func TestCanTransition_RestaurantHappyPath(t *testing.T) {
	steps := []struct{ from, to Status }{
		{StatusPending, StatusAccepted},
		{StatusAccepted, StatusPreparing},
		{StatusPreparing, StatusReady},
	}
	for _, s := range steps {
		if !CanTransition(RoleRestaurant, s.from, s.to) {
			t.Errorf("restaurant %s -> %s should be allowed", s.from, s.to)
		}
	}
}

func TestCanTransition_DriverLegs(t *testing.T) {
	steps := []struct{ from, to Status }{
		{StatusDriverAssigned, StatusPickedUp},
		{StatusPickedUp, StatusOutForDelivery},
		{StatusOutForDelivery, StatusDelivered},
	}
	for _, s := range steps {
		if !CanTransition(RoleDriver, s.from, s.to) {
			t.Errorf("driver %s -> %s should be allowed", s.from, s.to)
		}
	}
}

func TestCanTransition_CustomerCancelWindow(t *testing.T) {
	if !CanTransition(RoleCustomer, StatusPending, StatusCancelled) {
		t.Error("customer should cancel a pending order")
	}
	if !CanTransition(RoleCustomer, StatusAccepted, StatusCancelled) {
		t.Error("customer should cancel an accepted order")
	}
	if CanTransition(RoleCustomer, StatusPreparing, StatusCancelled) {
		t.Error("customer must not cancel once preparation started")
	}
	if CanTransition(RoleCustomer, StatusDriverAssigned, StatusCancelled) {
		t.Error("customer must not cancel after driver assignment")
	}
}

func TestCanTransition_NoRoleCrossesLegs(t *testing.T) {
	// The kitchen legs belong to the restaurant, the delivery legs to the
	// driver (or dispatch for assignment). No role may drive the other side.
	if CanTransition(RoleDriver, StatusPending, StatusAccepted) {
		t.Error("driver must not accept orders")
	}
	if CanTransition(RoleRestaurant, StatusDriverAssigned, StatusPickedUp) {
		t.Error("restaurant must not drive delivery legs via the base table")
	}
	if CanTransition(RoleCustomer, StatusOutForDelivery, StatusDelivered) {
		t.Error("customer must not confirm delivery")
	}
}

func TestCanTransition_TerminalStatesAreFinal(t *testing.T) {
	roles := []Role{RoleCustomer, RoleRestaurant, RoleDriver, RoleDispatch}
	for _, from := range []Status{StatusDelivered, StatusCancelled} {
		for _, role := range roles {
			for _, to := range AllStatuses {
				if CanTransition(role, from, to) {
					t.Errorf("%s %s -> %s should be rejected; terminal states have no exits", role, from, to)
				}
			}
		}
	}
}

func TestCanTransition_NoSelfLoops(t *testing.T) {
	roles := []Role{RoleCustomer, RoleRestaurant, RoleDriver, RoleDispatch}
	for _, role := range roles {
		for _, st := range AllStatuses {
			if CanTransition(role, st, st) {
				t.Errorf("%s %s -> %s self-loop should be rejected", role, st, st)
			}
		}
	}
}

func TestCanTransition_UnknownRoleRejected(t *testing.T) {
	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			if CanTransition(Role("admin"), from, to) {
				t.Errorf("unknown role allowed %s -> %s", from, to)
			}
		}
	}
}

func TestPaymentMethod_Electronic(t *testing.T) {
	if PaymentCOD.Electronic() {
		t.Error("cod is not electronic")
	}
	for _, m := range []PaymentMethod{PaymentMTNCash, PaymentSyriatelCash, PaymentShamCash} {
		if !m.Electronic() {
			t.Errorf("%s should be electronic", m)
		}
		if !m.Valid() {
			t.Errorf("%s should be valid", m)
		}
	}
	if PaymentMethod("paypal").Valid() {
		t.Error("unknown method should be invalid")
	}
}

func TestOrder_Assigned(t *testing.T) {
	o := &Order{}
	if o.Assigned() {
		t.Error("fresh order must not read as assigned")
	}
	empty := types.ID("")
	o.DriverID = &empty
	if o.Assigned() {
		t.Error("empty driver id must not read as assigned")
	}
	id := types.ID("drv-1")
	o.DriverID = &id
	if !o.Assigned() {
		t.Error("order with driver must read as assigned")
	}
}
