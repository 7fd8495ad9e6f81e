package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestReserveSeatRequestBindsSeatsBooked(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	body := `{"ride_id":"64f000000000000000000001","seats_booked":2,"payment_method":"CASH","idempotency_key":"k1"}`
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	var request reserveSeatRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		t.Fatalf("bind: %v", err)
	}

	if request.RideID != "64f000000000000000000001" {
		t.Fatalf("ride id = %q", request.RideID)
	}
	if request.Seats != 2 {
		t.Fatalf("seats = %d, want 2", request.Seats)
	}
	if request.IdempotencyKey != "k1" {
		t.Fatalf("idempotency key = %q, want k1", request.IdempotencyKey)
	}
}
