package utils

import "time"

// Application constants
const (
	AppName    = "RidePool"
	AppVersion = "1.0.0"

	// Pagination
	DefaultPageSize = 20
	MaxPageSize     = 100
	MinPageSize     = 1

	// Booking
	MaxSeatsPerBooking = 8

	// Chat
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200

	// Rate limiting
	DefaultRateLimit       = 100
	DefaultRateLimitWindow = time.Minute
)

// Stable error codes surfaced to clients
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeRideNotFound      = "RIDE_NOT_FOUND"
	CodeRideNotActive     = "RIDE_NOT_ACTIVE"
	CodeSelfBooking       = "SELF_BOOKING"
	CodeInsufficientSeats = "INSUFFICIENT_SEATS"
	CodeBookingNotFound   = "BOOKING_NOT_FOUND"
	CodeBookingConflict   = "BOOKING_CONFLICT"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeForbidden         = "FORBIDDEN"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeRateLimited       = "RATE_LIMITED"
	CodeInternal          = "INTERNAL_ERROR"
)
