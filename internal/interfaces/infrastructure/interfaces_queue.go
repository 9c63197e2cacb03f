package interfaces

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NotificationJob asks the workers to send the admin and attendee messages
// for one reservation. Exactly one job is enqueued per confirmed
// reservation: at admission time for free courses, at payment completion
// for paid ones.
type NotificationJob struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	Timestamp     time.Time `json:"timestamp"`
	Attempts      int       `json:"attempts"`
}

type QueueService interface {
	EnqueueNotification(ctx context.Context, job NotificationJob) error
	DequeueNotification(ctx context.Context) (*NotificationJob, error)
	SetDispatcher(dispatcher interface{})
	StartWorkers()
	StopWorkers()
}
