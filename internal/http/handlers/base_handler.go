// README: Base handler utilities: JSON helpers, error mapping, caller actor resolution.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"yalla/internal/http/middleware"
	"yalla/internal/modules/dispatch"
	"yalla/internal/modules/order"
	"yalla/internal/modules/presence"
	"yalla/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeOrderError maps domain sentinels onto HTTP statuses. 409 is reserved
// for lost races and stale writes; caller-side state errors go to 422 so
// clients never string-match to tell "order taken" from "go online first".
func writeOrderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, order.ErrBadRequest),
		errors.Is(err, order.ErrMissingPaymentRef),
		errors.Is(err, dispatch.ErrBadSort):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, presence.ErrDriverNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, order.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, order.ErrConflict),
		errors.Is(err, order.ErrAlreadyTaken):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, order.ErrRestaurantClosed),
		errors.Is(err, order.ErrBelowMinOrder),
		errors.Is(err, dispatch.ErrDriverOffline),
		errors.Is(err, presence.ErrOutsideCoverage):
		writeError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, order.ErrUnavailable):
		writeError(c, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func callerActor(c *gin.Context, role order.Role) order.Actor {
	return order.Actor{ID: types.ID(middleware.CallerUID(c)), Role: role}
}

func callerID(c *gin.Context) types.ID {
	return types.ID(middleware.CallerUID(c))
}
