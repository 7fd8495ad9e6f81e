package routes

import (
	"ridepool/internal/handlers"

	"github.com/gin-gonic/gin"
)

// SetupRideRoutes sets up routes for ride publishing and search
func SetupRideRoutes(r *gin.RouterGroup, rideHandler *handlers.RideHandler, auth gin.HandlerFunc) {
	rides := r.Group("/rides")
	{
		// Search and detail are public
		rides.GET("", rideHandler.SearchRides)
		rides.GET("/:id", rideHandler.GetRide)

		rides.POST("", auth, rideHandler.CreateRide)
	}
}
