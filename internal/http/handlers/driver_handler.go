// README: Driver-facing handlers: presence, available orders, claim, delivery legs, stats.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"yalla/internal/modules/dispatch"
	"yalla/internal/modules/order"
	"yalla/internal/modules/presence"
	"yalla/internal/types"
)

type DriverHandler struct {
	orders   *order.Service
	dispatch *dispatch.Service
	presence *presence.Service
}

func NewDriverHandler(orders *order.Service, dispatch *dispatch.Service, pres *presence.Service) *DriverHandler {
	return &DriverHandler{orders: orders, dispatch: dispatch, presence: pres}
}

type onlineReq struct {
	Online *bool `json:"online"`
}

func (h *DriverHandler) SetOnline(c *gin.Context) {
	var req onlineReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Online == nil {
		writeError(c, http.StatusBadRequest, "online required")
		return
	}
	d, err := h.presence.SetOnline(c.Request.Context(), callerID(c), *req.Online)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}

type pingReq struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Ping records a location fix; the covering city is re-resolved every time.
func (h *DriverHandler) Ping(c *gin.Context) {
	var req pingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	d, err := h.presence.Ping(c.Request.Context(), callerID(c), types.Point{Lat: req.Lat, Lng: req.Lng})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}

// Available lists claimable orders in the driver's city.
func (h *DriverHandler) Available(c *gin.Context) {
	orders, err := h.dispatch.AvailableOrders(c.Request.Context(), callerID(c))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"orders": orders})
}

// Claim races for an order. Losing surfaces as 409.
func (h *DriverHandler) Claim(c *gin.Context) {
	o, err := h.dispatch.Claim(c.Request.Context(), callerID(c), types.ID(c.Param("id")))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

func (h *DriverHandler) MyOrders(c *gin.Context) {
	orders, err := h.orders.ListForDriver(c.Request.Context(), callerID(c))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"orders": orders})
}

func (h *DriverHandler) History(c *gin.Context) {
	orders, err := h.orders.DriverHistory(c.Request.Context(), callerID(c))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"orders": orders})
}

// UpdateStatus advances the delivery legs: picked_up, out_for_delivery,
// delivered.
func (h *DriverHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		writeError(c, http.StatusBadRequest, "status required")
		return
	}
	o, err := h.orders.Transition(c.Request.Context(), order.TransitionCommand{
		OrderID: types.ID(c.Param("id")),
		Actor:   callerActor(c, order.RoleDriver),
		Target:  order.Status(req.Status),
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

func (h *DriverHandler) Stats(c *gin.Context) {
	stats, err := h.orders.StatsForDriver(c.Request.Context(), callerID(c))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, stats)
}
