// README: Customer-facing order handlers: create, list, track, cancel, inbox.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"yalla/internal/modules/dispatch"
	"yalla/internal/modules/order"
	"yalla/internal/notify"
	"yalla/internal/types"
)

type OrderHandler struct {
	orders   *order.Service
	dispatch *dispatch.Service
	inbox    *notify.Sink
}

func NewOrderHandler(orders *order.Service, dispatch *dispatch.Service, inbox *notify.Sink) *OrderHandler {
	return &OrderHandler{orders: orders, dispatch: dispatch, inbox: inbox}
}

type createOrderReq struct {
	RestaurantID   string             `json:"restaurant_id"`
	Items          []createOrderItem  `json:"items"`
	PaymentMethod  string             `json:"payment_method"`
	PaymentRef     string             `json:"payment_ref"`
	Address        order.Address      `json:"address"`
	RecipientName  string             `json:"recipient_name"`
	RecipientPhone string             `json:"recipient_phone"`
	Notes          string             `json:"notes"`
}

type createOrderItem struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
	Notes      string `json:"notes"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}

	items := make([]order.ItemInput, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.ItemInput{
			MenuItemID: types.ID(it.MenuItemID),
			Quantity:   it.Quantity,
			Notes:      it.Notes,
		}
	}
	o, err := h.orders.Create(c.Request.Context(), order.CreateCommand{
		CustomerID:     callerID(c),
		RestaurantID:   types.ID(req.RestaurantID),
		Items:          items,
		PaymentMethod:  order.PaymentMethod(req.PaymentMethod),
		PaymentRef:     req.PaymentRef,
		Address:        req.Address,
		RecipientName:  req.RecipientName,
		RecipientPhone: req.RecipientPhone,
		Notes:          req.Notes,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, o)
}

func (h *OrderHandler) List(c *gin.Context) {
	orders, err := h.orders.ListForCustomer(c.Request.Context(), callerID(c))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"orders": orders})
}

func (h *OrderHandler) Get(c *gin.Context) {
	o, err := h.orders.Get(c.Request.Context(), callerActor(c, order.RoleCustomer), types.ID(c.Param("id")))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	o, err := h.orders.Transition(c.Request.Context(), order.TransitionCommand{
		OrderID: types.ID(c.Param("id")),
		Actor:   callerActor(c, order.RoleCustomer),
		Target:  order.StatusCancelled,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

func (h *OrderHandler) Track(c *gin.Context) {
	v, err := h.dispatch.Track(c.Request.Context(), callerActor(c, order.RoleCustomer), types.ID(c.Param("id")))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, v)
}

func (h *OrderHandler) Notifications(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list, err := h.inbox.ListForUser(c.Request.Context(), callerID(c), limit)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"notifications": list})
}

func (h *OrderHandler) MarkNotificationRead(c *gin.Context) {
	if err := h.inbox.MarkRead(c.Request.Context(), callerID(c), types.ID(c.Param("id"))); err != nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	c.Status(http.StatusNoContent)
}

type pushTokenReq struct {
	Token string `json:"token"`
}

func (h *OrderHandler) RegisterPushToken(c *gin.Context) {
	var req pushTokenReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		writeError(c, http.StatusBadRequest, "token required")
		return
	}
	if err := h.inbox.RegisterToken(c.Request.Context(), callerID(c), req.Token); err != nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	c.Status(http.StatusNoContent)
}
