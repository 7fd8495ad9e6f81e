package handlers

import (
	"ridepool/internal/models"
	"ridepool/internal/services"
	"ridepool/internal/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type BookingHandler struct {
	bookingService *services.BookingService
}

func NewBookingHandler(bookingService *services.BookingService) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
	}
}

type reserveSeatRequest struct {
	RideID         string               `json:"ride_id" binding:"required"`
	Seats          int                  `json:"seats_booked" binding:"required"`
	PaymentMethod  models.PaymentMethod `json:"payment_method"`
	IdempotencyKey string               `json:"idempotency_key"`
}

type reserveSeatResponse struct {
	BookingID   string               `json:"booking_id"`
	SeatsBooked int                  `json:"seats_booked"`
	TotalPrice  float64              `json:"total_price"`
	Status      models.BookingStatus `json:"status"`
}

// ReserveSeats books seats on a ride for the authenticated passenger
func (h *BookingHandler) ReserveSeats(c *gin.Context) {
	var request reserveSeatRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	rideID, err := primitive.ObjectIDFromHex(request.RideID)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid ride ID")
		return
	}

	passengerID, _, ok := currentUser(c)
	if !ok {
		return
	}

	if request.PaymentMethod == "" {
		request.PaymentMethod = models.PaymentMethodCash
	}

	booking, err := h.bookingService.Reserve(c.Request.Context(), &services.ReserveRequest{
		RideID:         rideID,
		PassengerID:    passengerID,
		Seats:          request.Seats,
		PaymentMethod:  request.PaymentMethod,
		IdempotencyKey: request.IdempotencyKey,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, "Booking created successfully", reserveSeatResponse{
		BookingID:   booking.ID.Hex(),
		SeatsBooked: booking.SeatsBooked,
		TotalPrice:  booking.TotalPrice,
		Status:      booking.Status,
	})
}

// CancelBooking releases the seats held by a booking
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	bookingID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid booking ID")
		return
	}

	passengerID, _, ok := currentUser(c)
	if !ok {
		return
	}

	booking, err := h.bookingService.Cancel(c.Request.Context(), bookingID, passengerID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Booking cancelled successfully", booking)
}

type updateBookingStatusRequest struct {
	Status models.BookingStatus `json:"status" binding:"required"`
}

// UpdateBookingStatus lets the ride's driver confirm or complete a booking
func (h *BookingHandler) UpdateBookingStatus(c *gin.Context) {
	bookingID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid booking ID")
		return
	}

	var request updateBookingStatusRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	driverID, _, ok := currentUser(c)
	if !ok {
		return
	}

	switch request.Status {
	case models.BookingStatusConfirmed:
		err = h.bookingService.Confirm(c.Request.Context(), bookingID, driverID)
	case models.BookingStatusCompleted:
		err = h.bookingService.Complete(c.Request.Context(), bookingID, driverID)
	default:
		utils.BadRequestResponse(c, "Status must be CONFIRMED or COMPLETED")
		return
	}
	if err != nil {
		writeServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Booking status updated successfully", nil)
}

// GetMyBookings lists the authenticated user's bookings. With role=driver it
// returns bookings made on the user's rides instead.
func (h *BookingHandler) GetMyBookings(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}

	role := c.DefaultQuery("role", "passenger")
	status := models.BookingStatus(c.Query("status"))
	params := utils.GetPaginationParams(c)

	bookings, total, err := h.bookingService.ListMine(c.Request.Context(), userID, role, status, params)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Bookings retrieved successfully", bookings, &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
	})
}
