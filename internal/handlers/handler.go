package handlers

import (
	"errors"

	"ridepool/internal/services"
	"ridepool/internal/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// currentUser pulls the authenticated user out of the gin context. The auth
// middleware guarantees both values on protected routes.
func currentUser(c *gin.Context) (primitive.ObjectID, string, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		utils.UnauthorizedResponse(c)
		return primitive.NilObjectID, "", false
	}

	userObjectID, ok := userID.(primitive.ObjectID)
	if !ok {
		utils.UnauthorizedResponse(c)
		return primitive.NilObjectID, "", false
	}

	userName := c.GetString("user_name")
	return userObjectID, userName, true
}

// writeServiceError maps service errors onto the stable error codes and
// HTTP statuses clients depend on.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrRideNotFound):
		utils.NotFoundResponse(c, utils.CodeRideNotFound, "ride not found")
	case errors.Is(err, services.ErrBookingNotFound):
		utils.NotFoundResponse(c, utils.CodeBookingNotFound, "booking not found")
	case errors.Is(err, services.ErrRideNotActive):
		utils.ErrorResponse(c, 400, utils.CodeRideNotActive, "ride is not accepting bookings")
	case errors.Is(err, services.ErrSelfBooking):
		utils.ErrorResponse(c, 400, utils.CodeSelfBooking, "drivers cannot book their own ride")
	case errors.Is(err, services.ErrInvalidSeats):
		utils.BadRequestResponse(c, "invalid seat count")
	case errors.Is(err, services.ErrInvalidPrice):
		utils.BadRequestResponse(c, "invalid price")
	case errors.Is(err, services.ErrInvalidTransition):
		utils.ErrorResponse(c, 400, utils.CodeInvalidTransition, "booking cannot change to that status")
	case errors.Is(err, services.ErrInsufficientSeats):
		utils.ConflictResponse(c, utils.CodeInsufficientSeats, "not enough seats available")
	case errors.Is(err, services.ErrBookingConflict):
		utils.ConflictResponse(c, utils.CodeBookingConflict, "idempotency key already used with different parameters")
	case errors.Is(err, services.ErrNotAllowed):
		utils.ForbiddenResponse(c, "not allowed")
	default:
		utils.InternalServerErrorResponse(c)
	}
}
