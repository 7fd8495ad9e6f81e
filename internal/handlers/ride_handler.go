package handlers

import (
	"time"

	"ridepool/internal/models"
	"ridepool/internal/services"
	"ridepool/internal/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideHandler struct {
	rideService *services.RideService
}

func NewRideHandler(rideService *services.RideService) *RideHandler {
	return &RideHandler{
		rideService: rideService,
	}
}

type createRideRequest struct {
	OriginCity         string    `json:"origin_city" binding:"required"`
	OriginAddress      string    `json:"origin_address"`
	DestinationCity    string    `json:"destination_city" binding:"required"`
	DestinationAddress string    `json:"destination_address"`
	DepartureTime      time.Time `json:"departure_time" binding:"required"`
	PricePerSeat       float64   `json:"price_per_seat"`
	TotalSeats         int       `json:"total_seats" binding:"required"`
	WomenOnly          bool      `json:"women_only"`
	PetsAllowed        bool      `json:"pets_allowed"`
	SmokingAllowed     bool      `json:"smoking_allowed"`
	Notes              string    `json:"notes"`
}

// CreateRide publishes a new ride offered by the authenticated driver
func (h *RideHandler) CreateRide(c *gin.Context) {
	var request createRideRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	driverID, _, ok := currentUser(c)
	if !ok {
		return
	}

	ride := &models.Ride{
		DriverID:           driverID,
		OriginCity:         request.OriginCity,
		OriginAddress:      request.OriginAddress,
		DestinationCity:    request.DestinationCity,
		DestinationAddress: request.DestinationAddress,
		DepartureTime:      request.DepartureTime,
		PricePerSeat:       request.PricePerSeat,
		TotalSeats:         request.TotalSeats,
		WomenOnly:          request.WomenOnly,
		PetsAllowed:        request.PetsAllowed,
		SmokingAllowed:     request.SmokingAllowed,
		Notes:              request.Notes,
	}

	if err := h.rideService.Create(c.Request.Context(), ride); err != nil {
		writeServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, "Ride created successfully", ride)
}

// GetRide retrieves a single ride
func (h *RideHandler) GetRide(c *gin.Context) {
	rideID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid ride ID")
		return
	}

	ride, err := h.rideService.Get(c.Request.Context(), rideID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride retrieved successfully", ride)
}

// SearchRides lists active rides matching the query filters
func (h *RideHandler) SearchRides(c *gin.Context) {
	var params models.RideSearchParams
	if err := c.ShouldBindQuery(&params); err != nil {
		utils.BadRequestResponse(c, "Invalid query: "+err.Error())
		return
	}

	page := utils.GetPaginationParams(c)

	rides, total, err := h.rideService.Search(c.Request.Context(), &params, page)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Rides retrieved successfully", rides, &utils.Meta{
		Pagination: utils.CreatePaginationMeta(page, total),
	})
}
