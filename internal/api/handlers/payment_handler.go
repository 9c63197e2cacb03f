package handlers

import (
	"net/http"

	serviceInterfaces "corsi-booking/internal/interfaces/service"
	"corsi-booking/pkg/logger"
	"corsi-booking/pkg/validator"

	"github.com/gin-gonic/gin"
)

// paidStatuses are the provider order states that count as payment
// certainty. Both fire in the wild, depending on the payment method, and
// confirming is idempotent, so handling both is safe.
var paidStatuses = map[string]bool{
	"processing": true,
	"completed":  true,
}

// PaymentCallbackRequest is the provider's order status notification.
type PaymentCallbackRequest struct {
	OrderID   string                           `json:"order_id" validate:"required"`
	Status    string                           `json:"status" validate:"required"`
	LineItems []serviceInterfaces.OrderLineItem `json:"line_items"`
}

// PaymentHandler handles payment provider callbacks
type PaymentHandler struct {
	paymentService serviceInterfaces.PaymentCompletionService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentService serviceInterfaces.PaymentCompletionService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

// OrderStatusCallback handles POST /api/v1/payments/callback
func (h *PaymentHandler) OrderStatusCallback(c *gin.Context) {
	var req PaymentCallbackRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Message: "Invalid request format",
			Errors:  err.Error(),
		})
		return
	}

	if err := validator.ValidateStruct(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Message: "Validation failed",
			Errors:  validator.Messages(err),
		})
		return
	}

	if !paidStatuses[req.Status] {
		logger.Debug("Order %s moved to status %s, no booking action", req.OrderID, req.Status)
		c.JSON(http.StatusOK, APIResponse{
			Success: true,
			Message: "Order status acknowledged",
		})
		return
	}

	if err := h.paymentService.OnOrderPaid(c.Request.Context(), req.OrderID, req.LineItems); err != nil {
		logger.Error("Payment completion for order %s failed: %v", req.OrderID, err)
		c.JSON(http.StatusInternalServerError, APIResponse{
			Success: false,
			Message: "Failed to process payment completion",
		})
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Message: "Payment completion processed",
	})
}
