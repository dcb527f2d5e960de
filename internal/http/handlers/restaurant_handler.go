// README: Restaurant-facing handlers: kitchen flow, payment verification, courier pool, driver picking.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"yalla/internal/modules/catalog"
	"yalla/internal/modules/dispatch"
	"yalla/internal/modules/order"
	"yalla/internal/types"
)

type RestaurantHandler struct {
	orders   *order.Service
	dispatch *dispatch.Service
	catalog  *catalog.Store
}

func NewRestaurantHandler(orders *order.Service, dispatch *dispatch.Service, cat *catalog.Store) *RestaurantHandler {
	return &RestaurantHandler{orders: orders, dispatch: dispatch, catalog: cat}
}

func (h *RestaurantHandler) actor(c *gin.Context) order.Actor {
	return callerActor(c, order.RoleRestaurant)
}

func (h *RestaurantHandler) Orders(c *gin.Context) {
	orders, err := h.orders.ListForRestaurant(c.Request.Context(), h.actor(c))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"orders": orders})
}

func (h *RestaurantHandler) History(c *gin.Context) {
	orders, err := h.orders.RestaurantHistory(c.Request.Context(), h.actor(c))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"orders": orders})
}

type updateStatusReq struct {
	Status string `json:"status"`
	// DeliveryMode is honoured when the status moves to ready.
	DeliveryMode string `json:"delivery_mode"`
}

func (h *RestaurantHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		writeError(c, http.StatusBadRequest, "status required")
		return
	}
	o, err := h.orders.Transition(c.Request.Context(), order.TransitionCommand{
		OrderID: types.ID(c.Param("id")),
		Actor:   h.actor(c),
		Target:  order.Status(req.Status),
		Mode:    order.DeliveryMode(req.DeliveryMode),
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

func (h *RestaurantHandler) ConfirmPayment(c *gin.Context) {
	o, err := h.orders.ConfirmPayment(c.Request.Context(), h.actor(c), types.ID(c.Param("id")))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

func (h *RestaurantHandler) RejectPayment(c *gin.Context) {
	o, err := h.orders.RejectPayment(c.Request.Context(), h.actor(c), types.ID(c.Param("id")))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

type assignCourierReq struct {
	CourierID string `json:"courier_id"`
}

// AssignCourier puts one of the restaurant's own couriers on the order.
func (h *RestaurantHandler) AssignCourier(c *gin.Context) {
	var req assignCourierReq
	if err := c.ShouldBindJSON(&req); err != nil || req.CourierID == "" {
		writeError(c, http.StatusBadRequest, "courier_id required")
		return
	}

	rest, err := h.restaurantOf(c)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	courier, err := h.catalog.Courier(c.Request.Context(), rest.ID, types.ID(req.CourierID))
	if err != nil {
		writeError(c, http.StatusNotFound, "courier not found")
		return
	}
	o, err := h.orders.AssignCourier(c.Request.Context(), h.actor(c), types.ID(c.Param("id")), order.DriverInfo{
		ID:    courier.ID,
		Name:  courier.Name,
		Phone: courier.Phone,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

// RequestPlatform opens the order to the platform driver pool.
func (h *RestaurantHandler) RequestPlatform(c *gin.Context) {
	o, err := h.orders.RequestPlatform(c.Request.Context(), h.actor(c), types.ID(c.Param("id")))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

// Reassign clears the current driver so a new one can be chosen.
func (h *RestaurantHandler) Reassign(c *gin.Context) {
	o, err := h.orders.ReassignDriver(c.Request.Context(), h.actor(c), types.ID(c.Param("id")))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

// EligibleDrivers lists ranked platform drivers for an order.
func (h *RestaurantHandler) EligibleDrivers(c *gin.Context) {
	ranked, err := h.dispatch.EligibleDrivers(c.Request.Context(), h.actor(c),
		types.ID(c.Param("id")), dispatch.SortMode(c.Query("sort")))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"drivers": ranked})
}

type pickDriverReq struct {
	DriverID string `json:"driver_id"`
}

// PickDriver hands the order to a chosen platform driver.
func (h *RestaurantHandler) PickDriver(c *gin.Context) {
	var req pickDriverReq
	if err := c.ShouldBindJSON(&req); err != nil || req.DriverID == "" {
		writeError(c, http.StatusBadRequest, "driver_id required")
		return
	}
	o, err := h.dispatch.PickDriver(c.Request.Context(), h.actor(c), types.ID(c.Param("id")), types.ID(req.DriverID))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

func (h *RestaurantHandler) Couriers(c *gin.Context) {
	rest, err := h.restaurantOf(c)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	couriers, err := h.catalog.Couriers(c.Request.Context(), rest.ID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"couriers": couriers})
}

type addCourierReq struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func (h *RestaurantHandler) AddCourier(c *gin.Context) {
	var req addCourierReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" || req.Phone == "" {
		writeError(c, http.StatusBadRequest, "name and phone required")
		return
	}
	rest, err := h.restaurantOf(c)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	courier, err := h.catalog.AddCourier(c.Request.Context(), rest.ID, req.Name, req.Phone)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(c, http.StatusCreated, courier)
}

func (h *RestaurantHandler) RemoveCourier(c *gin.Context) {
	rest, err := h.restaurantOf(c)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	if err := h.catalog.RemoveCourier(c.Request.Context(), rest.ID, types.ID(c.Param("courierId"))); err != nil {
		writeError(c, http.StatusNotFound, "courier not found")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RestaurantHandler) AddFavorite(c *gin.Context) {
	rest, err := h.restaurantOf(c)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	if err := h.catalog.AddFavorite(c.Request.Context(), rest.ID, types.ID(c.Param("driverId"))); err != nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RestaurantHandler) RemoveFavorite(c *gin.Context) {
	rest, err := h.restaurantOf(c)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	if err := h.catalog.RemoveFavorite(c.Request.Context(), rest.ID, types.ID(c.Param("driverId"))); err != nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	c.Status(http.StatusNoContent)
}

type settingsReq struct {
	SearchRadiusKm *float64 `json:"search_radius_km"`
	Open           *bool    `json:"open"`
}

// UpdateSettings changes the driver search radius and the open flag.
func (h *RestaurantHandler) UpdateSettings(c *gin.Context) {
	var req settingsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	rest, err := h.restaurantOf(c)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	ctx := c.Request.Context()
	if req.SearchRadiusKm != nil {
		if *req.SearchRadiusKm <= 0 {
			writeError(c, http.StatusBadRequest, "search_radius_km must be positive")
			return
		}
		if err := h.catalog.SetSearchRadius(ctx, rest.ID, *req.SearchRadiusKm); err != nil {
			writeError(c, http.StatusInternalServerError, "internal error")
			return
		}
	}
	if req.Open != nil {
		if err := h.catalog.SetOpen(ctx, rest.ID, *req.Open); err != nil {
			writeError(c, http.StatusInternalServerError, "internal error")
			return
		}
	}
	c.Status(http.StatusNoContent)
}

func (h *RestaurantHandler) restaurantOf(c *gin.Context) (*order.RestaurantInfo, error) {
	rest, err := h.catalog.RestaurantByOwner(c.Request.Context(), callerID(c))
	if err != nil {
		return nil, err
	}
	if rest == nil {
		return nil, order.ErrNotFound
	}
	return rest, nil
}
