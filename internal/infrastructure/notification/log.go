package notification

import (
	"context"

	booking "corsi-booking/internal/domain/booking"
	interfaces "corsi-booking/internal/interfaces/infrastructure"
	"corsi-booking/pkg/logger"

	"github.com/sirupsen/logrus"
)

var _ interfaces.NotificationGateway = (*LogNotifier)(nil)

// LogNotifier writes booking notifications to the log instead of sending
// mail. Used when no SMTP host is configured.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) NotifyAdmin(_ context.Context, reservation *booking.Reservation, course *booking.Course, occurrence *booking.Occurrence) error {
	logger.WithFields(logrus.Fields{
		"reservation_id": reservation.ReservationID,
		"course":         course.Title,
		"date":           occurrence.Date.Format("2006-01-02"),
		"attendee":       reservation.AttendeeName(),
		"email":          reservation.Email,
	}).Info("admin notification")
	return nil
}

func (n *LogNotifier) NotifyAttendee(_ context.Context, reservation *booking.Reservation, course *booking.Course, occurrence *booking.Occurrence) error {
	logger.WithFields(logrus.Fields{
		"reservation_id": reservation.ReservationID,
		"course":         course.Title,
		"date":           occurrence.Date.Format("2006-01-02"),
		"to":             reservation.Email,
	}).Info("attendee confirmation")
	return nil
}
