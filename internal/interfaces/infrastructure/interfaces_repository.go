package interfaces

import (
	"context"
	"errors"

	booking "corsi-booking/internal/domain/booking"

	"github.com/google/uuid"
)

// ErrIdempotencyKeyNotFound is returned by IdempotencyRepository.GetByKey
// when the key was never stored or has already expired out of the cache.
var ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")

type CourseRepository interface {
	Create(ctx context.Context, course *booking.Course) error
	// GetByID returns the course with its occurrences preloaded, or nil
	// when no such course exists.
	GetByID(ctx context.Context, id uuid.UUID) (*booking.Course, error)
	GetOccurrences(ctx context.Context, courseID uuid.UUID) ([]booking.Occurrence, error)
	ListPublished(ctx context.Context) ([]*booking.Course, error)
}

type ReservationRepository interface {
	Create(ctx context.Context, reservation *booking.Reservation) error
	GetByID(ctx context.Context, id uuid.UUID) (*booking.Reservation, error)
	Update(ctx context.Context, reservation *booking.Reservation) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status booking.ReservationStatus) error
	// TransitionStatus moves the reservation from one status to another
	// atomically and reports whether the transition actually happened.
	// A duplicate payment callback therefore confirms at most once.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to booking.ReservationStatus, orderRef string) (bool, error)
	CountByOccurrenceAndStatus(ctx context.Context, courseID uuid.UUID, occurrenceIndex int, statuses []booking.ReservationStatus) (int64, error)
	GetByOccurrence(ctx context.Context, courseID uuid.UUID, occurrenceIndex int) ([]*booking.Reservation, error)
}

// OccupancyRepository serves the read-only seat occupancy report.
type OccupancyRepository interface {
	CourseOccupancy(ctx context.Context, courseID uuid.UUID) ([]booking.OccupancyRow, error)
}

type IdempotencyRepository interface {
	Create(ctx context.Context, key *booking.IdempotencyKey) error
	GetByKey(ctx context.Context, key string) (*booking.IdempotencyKey, error)
	Delete(ctx context.Context, key string) error
}
