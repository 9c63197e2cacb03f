package service

import (
	"context"

	booking "corsi-booking/internal/domain/booking"

	"github.com/google/uuid"
)

// BookingRequest is the flat submission accepted by the booking service.
// OccurrenceChoice stays a string on purpose: index "0" is a valid choice
// and must be distinguishable from an unset field, so presence is checked
// on the raw value rather than on a zero int.
type BookingRequest struct {
	CourseID         uuid.UUID `json:"course_id" validate:"required"`
	OccurrenceChoice string    `json:"occurrence_choice" validate:"required"`
	FirstName        string    `json:"first_name" validate:"required"`
	LastName         string    `json:"last_name" validate:"required"`
	Email            string    `json:"email" validate:"required,email"`
	Phone            string    `json:"phone"`
	OrganizationName string    `json:"organization_name"`
	TaxID            string    `json:"tax_id"`
	IdempotencyKey   string    `json:"-"`
}

// BookingOutcome is the success result of a submission: either a
// confirmation (free course) or a redirect into the payment flow.
type BookingOutcome struct {
	ReservationID   uuid.UUID                 `json:"reservation_id"`
	Status          booking.ReservationStatus `json:"status"`
	PaymentRequired bool                      `json:"payment_required"`
	RedirectURL     string                    `json:"redirect_url"`
}

// OrderLineItem is one line of a paid external order as delivered by the
// payment completion callback.
type OrderLineItem struct {
	ReservationID uuid.UUID `json:"reservation_id"`
}

type BookingService interface {
	SubmitBooking(ctx context.Context, req *BookingRequest) (*BookingOutcome, error)
	GetCourse(ctx context.Context, courseID uuid.UUID) (*booking.Course, error)
	GetCourseOccupancy(ctx context.Context, courseID uuid.UUID) ([]booking.OccupancyRow, error)
}

// PaymentCompletionService reacts to the external order reaching a paid
// terminal state. Safe to call more than once for the same order.
type PaymentCompletionService interface {
	OnOrderPaid(ctx context.Context, orderID string, items []OrderLineItem) error
}

// NotificationDispatcher resolves a reservation and sends its admin and
// attendee messages. Queue workers call this.
type NotificationDispatcher interface {
	DispatchReservationNotifications(ctx context.Context, reservationID uuid.UUID) error
}
