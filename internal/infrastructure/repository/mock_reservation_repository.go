package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	booking "corsi-booking/internal/domain/booking"
	interfaces "corsi-booking/internal/interfaces/infrastructure"

	"github.com/google/uuid"
)

var _ interfaces.ReservationRepository = (*MockReservationRepository)(nil)

// MockReservationRepository is an in-memory ReservationRepository for
// tests and development. FailCreates can be set to simulate storage
// failures on Create.
type MockReservationRepository struct {
	mu           sync.RWMutex
	reservations map[uuid.UUID]*booking.Reservation

	FailCreates bool
}

func NewMockReservationRepository() *MockReservationRepository {
	return &MockReservationRepository{
		reservations: make(map[uuid.UUID]*booking.Reservation),
	}
}

func (r *MockReservationRepository) Create(_ context.Context, reservation *booking.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailCreates {
		return errors.New("simulated storage failure")
	}

	if reservation.ReservationID == uuid.Nil {
		reservation.ReservationID = uuid.New()
	}
	if reservation.CreatedAt.IsZero() {
		reservation.CreatedAt = time.Now()
	}
	reservation.Version = 1
	copied := *reservation
	r.reservations[reservation.ReservationID] = &copied
	return nil
}

func (r *MockReservationRepository) GetByID(_ context.Context, id uuid.UUID) (*booking.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reservation, ok := r.reservations[id]
	if !ok {
		return nil, nil
	}
	copied := *reservation
	return &copied, nil
}

func (r *MockReservationRepository) Update(_ context.Context, reservation *booking.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.reservations[reservation.ReservationID]; !ok {
		return errors.New("reservation not found")
	}
	reservation.UpdatedAt = time.Now()
	copied := *reservation
	r.reservations[reservation.ReservationID] = &copied
	return nil
}

func (r *MockReservationRepository) UpdateStatus(_ context.Context, id uuid.UUID, status booking.ReservationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reservation, ok := r.reservations[id]
	if !ok {
		return errors.New("reservation not found")
	}
	reservation.Status = status
	reservation.UpdatedAt = time.Now()
	return nil
}

func (r *MockReservationRepository) TransitionStatus(_ context.Context, id uuid.UUID, from, to booking.ReservationStatus, orderRef string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reservation, ok := r.reservations[id]
	if !ok {
		return false, nil
	}
	if reservation.Status != from {
		return false, nil
	}
	reservation.Status = to
	reservation.PaymentOrderRef = orderRef
	reservation.UpdatedAt = time.Now()
	reservation.Version++
	return true, nil
}

func (r *MockReservationRepository) CountByOccurrenceAndStatus(_ context.Context, courseID uuid.UUID, occurrenceIndex int, statuses []booking.ReservationStatus) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, reservation := range r.reservations {
		if reservation.CourseID != courseID || reservation.OccurrenceIndex != occurrenceIndex {
			continue
		}
		for _, status := range statuses {
			if reservation.Status == status {
				count++
				break
			}
		}
	}
	return count, nil
}

func (r *MockReservationRepository) GetByOccurrence(_ context.Context, courseID uuid.UUID, occurrenceIndex int) ([]*booking.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var reservations []*booking.Reservation
	for _, reservation := range r.reservations {
		if reservation.CourseID == courseID && reservation.OccurrenceIndex == occurrenceIndex {
			copied := *reservation
			reservations = append(reservations, &copied)
		}
	}
	return reservations, nil
}
