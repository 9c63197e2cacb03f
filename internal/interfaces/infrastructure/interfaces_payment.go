package interfaces

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PaymentLine is the single line item staged for the external checkout.
// It carries everything the payment side shows the buyer and the hidden
// reservation reference the completion callback brings back.
type PaymentLine struct {
	ReservationID  uuid.UUID `json:"reservation_id"`
	ProductID      int64     `json:"product_id"`
	CourseTitle    string    `json:"course_title"`
	OccurrenceDate time.Time `json:"occurrence_date"`
	Duration       string    `json:"duration"`
}

// PaymentStaging hands a booking over to the external payment flow. The
// processor itself is a black box; this only prepares the pending cart
// and yields the continuation URL.
type PaymentStaging interface {
	// Available reports whether the payment flow can be used at all.
	// When it is not, paid courses book as free ones.
	Available() bool
	// ClearPending drops any previously staged state for the session so
	// the cart holds exactly one line afterwards.
	ClearPending(ctx context.Context, sessionID string) error
	StageLine(ctx context.Context, sessionID string, line PaymentLine) error
	CheckoutURL() string
}
