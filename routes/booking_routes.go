package routes

import (
	"ridepool/internal/handlers"

	"github.com/gin-gonic/gin"
)

// SetupBookingRoutes sets up routes for seat reservations
func SetupBookingRoutes(r *gin.RouterGroup, bookingHandler *handlers.BookingHandler, auth gin.HandlerFunc) {
	bookings := r.Group("/bookings")
	bookings.Use(auth)
	{
		bookings.POST("", bookingHandler.ReserveSeats)
		bookings.PUT("/:id/cancel", bookingHandler.CancelBooking)
		bookings.PUT("/:id/status", bookingHandler.UpdateBookingStatus)
		bookings.GET("/my", bookingHandler.GetMyBookings)
	}
}
