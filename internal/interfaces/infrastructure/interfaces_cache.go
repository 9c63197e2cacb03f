package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrSeatCounterMissing is returned by ClaimSeat when no counter has been
// initialized for the occurrence yet; callers seed it from the store.
var ErrSeatCounterMissing = errors.New("seat counter not initialized")

// ErrNoSeatsLeft is returned by ClaimSeat when the counter is exhausted.
var ErrNoSeatsLeft = errors.New("no seats left")

type CacheService interface {
	// Seat admission counters, keyed by (course, occurrence index).
	// ClaimSeat decrements the counter only while it is positive, so two
	// concurrent claims for the last seat cannot both succeed.
	GetFreeSeats(ctx context.Context, courseID uuid.UUID, occurrenceIndex int) (int, error)
	SetFreeSeats(ctx context.Context, courseID uuid.UUID, occurrenceIndex int, seats int, ttl time.Duration) error
	ClaimSeat(ctx context.Context, courseID uuid.UUID, occurrenceIndex int) (int, error)
	ReleaseSeat(ctx context.Context, courseID uuid.UUID, occurrenceIndex int) (int, error)

	// One-time booking form tokens (anti-forgery).
	IssueFormToken(ctx context.Context, token string, ttl time.Duration) error
	ConsumeFormToken(ctx context.Context, token string) (bool, error)

	// Generic operations.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	Ping(ctx context.Context) error
	Close() error
}
