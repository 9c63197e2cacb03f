package interfaces

import (
	"context"

	booking "corsi-booking/internal/domain/booking"
)

// NotificationGateway delivers booking messages. Both calls are
// best-effort and must tolerate being invoked more than once for the same
// reservation; the dispatch path keeps that to one pair per lifecycle.
type NotificationGateway interface {
	NotifyAdmin(ctx context.Context, reservation *booking.Reservation, course *booking.Course, occurrence *booking.Occurrence) error
	NotifyAttendee(ctx context.Context, reservation *booking.Reservation, course *booking.Course, occurrence *booking.Occurrence) error
}
