package handlers

import (
	"net/http"
	"time"

	booking "corsi-booking/internal/domain/booking"
	interfaces "corsi-booking/internal/interfaces/infrastructure"
	serviceInterfaces "corsi-booking/internal/interfaces/service"
	"corsi-booking/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

// BookingHandler handles booking-related HTTP requests
type BookingHandler struct {
	bookingService serviceInterfaces.BookingService
	cacheService   interfaces.CacheService
	formTokenTTL   time.Duration
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(bookingService serviceInterfaces.BookingService, cacheService interfaces.CacheService, formTokenTTL time.Duration) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
		cacheService:   cacheService,
		formTokenTTL:   formTokenTTL,
	}
}

type submitBookingPayload struct {
	serviceInterfaces.BookingRequest
	BookingToken string `json:"booking_token"`
}

// IssueToken handles GET /api/v1/bookings/token. The returned token is
// single use: the matching submission consumes it.
func (h *BookingHandler) IssueToken(c *gin.Context) {
	token := uuid.NewString()

	if err := h.cacheService.IssueFormToken(c.Request.Context(), token, h.formTokenTTL); err != nil {
		logger.Error("Failed to issue booking form token: %v", err)
		c.JSON(http.StatusInternalServerError, APIResponse{
			Success: false,
			Message: "Unable to issue booking token",
		})
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"token":              token,
			"expires_in_seconds": int(h.formTokenTTL.Seconds()),
		},
	})
}

// SubmitBooking handles POST /api/v1/bookings
func (h *BookingHandler) SubmitBooking(c *gin.Context) {
	var payload submitBookingPayload

	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Message: "Invalid request format",
			Code:    string(booking.ErrCodeValidation),
			Errors:  err.Error(),
		})
		return
	}

	// The anti-forgery token is checked before any field validation, so a
	// stale or forged form never learns which fields it got wrong.
	token := c.GetHeader("X-Booking-Token")
	if token == "" {
		token = payload.BookingToken
	}
	if !h.consumeToken(c, token) {
		return
	}

	req := payload.BookingRequest
	req.IdempotencyKey = c.GetHeader("Idempotency-Key")

	outcome, err := h.bookingService.SubmitBooking(c.Request.Context(), &req)
	if err != nil {
		h.respondBookingError(c, err)
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Message: "Booking processed successfully",
		Data:    outcome,
	})
}

func (h *BookingHandler) consumeToken(c *gin.Context, token string) bool {
	if token == "" {
		c.JSON(http.StatusForbidden, APIResponse{
			Success: false,
			Message: "Security check failed",
			Code:    string(booking.ErrCodeSecurity),
		})
		return false
	}

	valid, err := h.cacheService.ConsumeFormToken(c.Request.Context(), token)
	if err != nil {
		logger.Error("Failed to verify booking form token: %v", err)
		c.JSON(http.StatusInternalServerError, APIResponse{
			Success: false,
			Message: "Unable to process the booking",
		})
		return false
	}
	if !valid {
		c.JSON(http.StatusForbidden, APIResponse{
			Success: false,
			Message: "Security check failed",
			Code:    string(booking.ErrCodeSecurity),
		})
		return false
	}

	return true
}

func (h *BookingHandler) respondBookingError(c *gin.Context, err error) {
	var bookingErr *booking.Error
	switch booking.CodeOf(err) {
	case booking.ErrCodeValidation:
		bookingErr = booking.AsError(err)
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Message: bookingErr.Message,
			Code:    string(booking.ErrCodeValidation),
			Errors:  bookingErr.Fields,
		})
	case booking.ErrCodeInvalidOccurrence:
		bookingErr = booking.AsError(err)
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Message: bookingErr.Message,
			Code:    string(booking.ErrCodeInvalidOccurrence),
		})
	case booking.ErrCodeSoldOut:
		c.JSON(http.StatusConflict, APIResponse{
			Success: false,
			Message: "No seats available for the selected date",
			Code:    string(booking.ErrCodeSoldOut),
		})
	case booking.ErrCodeSecurity:
		c.JSON(http.StatusForbidden, APIResponse{
			Success: false,
			Message: "Security check failed",
			Code:    string(booking.ErrCodeSecurity),
		})
	default:
		// Storage and unexpected failures return a generic message; the
		// detail goes to the log, not to the client.
		logger.Error("Booking submission failed: %v", err)
		c.JSON(http.StatusInternalServerError, APIResponse{
			Success: false,
			Message: "Unable to process the booking",
			Code:    string(booking.ErrCodeStorage),
		})
	}
}
