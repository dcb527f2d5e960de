// README: Tests for the domain-error to HTTP-status mapping.
package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"yalla/internal/modules/dispatch"
	"yalla/internal/modules/order"
	"yalla/internal/modules/presence"
)

func TestWriteOrderError_StatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"bad request", order.ErrBadRequest, http.StatusBadRequest},
		{"missing payment ref", order.ErrMissingPaymentRef, http.StatusBadRequest},
		{"bad sort", dispatch.ErrBadSort, http.StatusBadRequest},
		{"not found", order.ErrNotFound, http.StatusNotFound},
		{"driver not found", presence.ErrDriverNotFound, http.StatusNotFound},
		{"forbidden", order.ErrForbidden, http.StatusForbidden},
		// Only the race outcomes are conflicts.
		{"lost swap", order.ErrConflict, http.StatusConflict},
		{"already taken", order.ErrAlreadyTaken, http.StatusConflict},
		// Caller-side state errors are distinguishable from a lost race.
		{"invalid transition", order.ErrInvalidTransition, http.StatusUnprocessableEntity},
		{"restaurant closed", order.ErrRestaurantClosed, http.StatusUnprocessableEntity},
		{"below min order", order.ErrBelowMinOrder, http.StatusUnprocessableEntity},
		{"driver offline", dispatch.ErrDriverOffline, http.StatusUnprocessableEntity},
		{"outside coverage", presence.ErrOutsideCoverage, http.StatusUnprocessableEntity},
		{"store unavailable", order.ErrUnavailable, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			writeOrderError(c, tc.err)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestWriteOrderError_ConflictDistinctFromCallerError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	writeOrderError(c, dispatch.ErrDriverOffline)
	offline := rec.Code

	rec = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	writeOrderError(c, order.ErrAlreadyTaken)
	taken := rec.Code

	if offline == taken {
		t.Fatalf("offline and lost-race map to the same status %d", offline)
	}
}
