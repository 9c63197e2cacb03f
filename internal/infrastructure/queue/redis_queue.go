package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	interfaces "corsi-booking/internal/interfaces/infrastructure"
	serviceInterfaces "corsi-booking/internal/interfaces/service"
	"corsi-booking/pkg/logger"

	"github.com/go-redis/redis/v8"
)

const (
	notificationQueueKey  = "queue:notifications"
	defaultDequeueTimeout = 2 * time.Second
	defaultJobTimeout     = 30 * time.Second
)

// RedisQueue is a Redis-list-backed QueueService so notification delivery
// survives process restarts and can be shared across instances.
type RedisQueue struct {
	client redis.UniversalClient

	workers int
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.RWMutex

	dispatcher serviceInterfaces.NotificationDispatcher
}

func NewRedisQueue(client redis.UniversalClient, workers int) interfaces.QueueService {
	ctx, cancel := context.WithCancel(context.Background())

	return &RedisQueue{
		client:  client,
		workers: workers,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (rq *RedisQueue) SetDispatcher(dispatcher interface{}) {
	rq.mu.Lock()
	defer rq.mu.Unlock()

	if d, ok := dispatcher.(serviceInterfaces.NotificationDispatcher); ok {
		rq.dispatcher = d
	} else {
		logger.Error("Invalid dispatcher type provided to SetDispatcher")
	}
}

func (rq *RedisQueue) StartWorkers() {
	rq.mu.Lock()
	defer rq.mu.Unlock()

	if rq.started {
		return
	}

	if rq.dispatcher == nil {
		logger.Warn("Notification dispatcher not set, workers cannot process jobs")
		return
	}

	logger.Info("Starting %d Redis notification queue workers", rq.workers)

	for i := 0; i < rq.workers; i++ {
		rq.wg.Add(1)
		go rq.notificationWorker(i)
	}

	rq.started = true
}

func (rq *RedisQueue) StopWorkers() {
	rq.mu.Lock()
	defer rq.mu.Unlock()

	if !rq.started {
		return
	}

	logger.Info("Stopping Redis notification queue workers...")
	rq.cancel()
	rq.wg.Wait()
	rq.started = false
	logger.Info("Redis notification queue workers stopped")
}

func (rq *RedisQueue) EnqueueNotification(ctx context.Context, job interfaces.NotificationJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal notification job: %w", err)
	}

	if err := rq.client.RPush(ctx, notificationQueueKey, string(data)).Err(); err != nil {
		return fmt.Errorf("failed to enqueue notification job: %w", err)
	}

	return nil
}

func (rq *RedisQueue) DequeueNotification(ctx context.Context) (*interfaces.NotificationJob, error) {
	result, err := rq.client.BLPop(ctx, defaultDequeueTimeout, notificationQueueKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue notification job: %w", err)
	}

	// BLPOP returns [key, value]
	if len(result) < 2 {
		return nil, fmt.Errorf("unexpected BLPOP result length: %d", len(result))
	}

	var job interfaces.NotificationJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification job: %w", err)
	}

	return &job, nil
}

func (rq *RedisQueue) notificationWorker(id int) {
	defer rq.wg.Done()

	logger.Debug("Redis notification worker %d started", id)

	for {
		select {
		case <-rq.ctx.Done():
			return
		default:
		}

		job, err := rq.DequeueNotification(rq.ctx)
		if err != nil {
			if rq.ctx.Err() != nil {
				return
			}
			logger.Error("Redis worker %d dequeue failed: %v", id, err)
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		rq.processJob(*job, id)
	}
}

func (rq *RedisQueue) processJob(job interfaces.NotificationJob, workerID int) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultJobTimeout)
	defer cancel()

	if err := rq.dispatcher.DispatchReservationNotifications(ctx, job.ReservationID); err != nil {
		job.Attempts++
		if job.Attempts < maxJobAttempts {
			logger.Warn("Redis worker %d failed to dispatch notifications for reservation %s (attempt %d): %v",
				workerID, job.ReservationID, job.Attempts, err)
			if requeueErr := rq.EnqueueNotification(ctx, job); requeueErr != nil {
				logger.Error("Failed to requeue notification job for reservation %s: %v", job.ReservationID, requeueErr)
			}
			return
		}
		logger.Error("Redis worker %d giving up on notifications for reservation %s after %d attempts: %v",
			workerID, job.ReservationID, job.Attempts, err)
		return
	}

	logger.Debug("Redis worker %d dispatched notifications for reservation %s", workerID, job.ReservationID)
}
