package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	interfaces "corsi-booking/internal/interfaces/infrastructure"
	serviceInterfaces "corsi-booking/internal/interfaces/service"
	"corsi-booking/pkg/logger"
)

const maxJobAttempts = 3

// Queue is a channel-backed QueueService. Workers pull notification jobs
// and hand them to the dispatcher; delivery is best-effort with a small
// retry budget.
type Queue struct {
	notificationQueue chan interfaces.NotificationJob

	workers int
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.RWMutex

	dispatcher serviceInterfaces.NotificationDispatcher
}

func NewInMemoryQueue(bufferSize, workers int) interfaces.QueueService {
	ctx, cancel := context.WithCancel(context.Background())

	return &Queue{
		notificationQueue: make(chan interfaces.NotificationJob, bufferSize),
		workers:           workers,
		ctx:               ctx,
		cancel:            cancel,
	}
}

func (q *Queue) SetDispatcher(dispatcher interface{}) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if d, ok := dispatcher.(serviceInterfaces.NotificationDispatcher); ok {
		q.dispatcher = d
	} else {
		logger.Error("Invalid dispatcher type provided to SetDispatcher")
	}
}

func (q *Queue) StartWorkers() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		return
	}

	if q.dispatcher == nil {
		logger.Warn("Notification dispatcher not set, workers cannot process jobs")
		return
	}

	logger.Info("Starting %d notification queue workers", q.workers)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.notificationWorker(i)
	}

	q.started = true
}

func (q *Queue) StopWorkers() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.started {
		return
	}

	logger.Info("Stopping notification queue workers...")
	q.cancel()
	q.wg.Wait()
	q.started = false
	logger.Info("Notification queue workers stopped")
}

func (q *Queue) EnqueueNotification(ctx context.Context, job interfaces.NotificationJob) error {
	select {
	case q.notificationQueue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("notification queue is full")
	}
}

func (q *Queue) DequeueNotification(ctx context.Context) (*interfaces.NotificationJob, error) {
	select {
	case job := <-q.notificationQueue:
		return &job, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *Queue) notificationWorker(id int) {
	defer q.wg.Done()

	logger.Debug("Notification worker %d started", id)

	for {
		job, err := q.DequeueNotification(q.ctx)
		if err != nil {
			return
		}

		q.processJob(*job, id)
	}
}

func (q *Queue) processJob(job interfaces.NotificationJob, workerID int) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := q.dispatcher.DispatchReservationNotifications(ctx, job.ReservationID); err != nil {
		job.Attempts++
		if job.Attempts < maxJobAttempts {
			logger.Warn("Worker %d failed to dispatch notifications for reservation %s (attempt %d): %v",
				workerID, job.ReservationID, job.Attempts, err)
			if requeueErr := q.EnqueueNotification(ctx, job); requeueErr != nil {
				logger.Error("Failed to requeue notification job for reservation %s: %v", job.ReservationID, requeueErr)
			}
			return
		}
		logger.Error("Worker %d giving up on notifications for reservation %s after %d attempts: %v",
			workerID, job.ReservationID, job.Attempts, err)
		return
	}

	logger.Debug("Worker %d dispatched notifications for reservation %s", workerID, job.ReservationID)
}
