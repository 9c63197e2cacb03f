package repository

import (
	"context"
	"time"

	booking "corsi-booking/internal/domain/booking"
	interfaces "corsi-booking/internal/interfaces/infrastructure"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var _ interfaces.ReservationRepository = (*ReservationRepository)(nil)

// ReservationRepository implements ReservationRepository using GORM
type ReservationRepository struct {
	db *gorm.DB
}

// NewReservationRepository creates a new GORM reservation repository
func NewReservationRepository(db *gorm.DB) *ReservationRepository {
	return &ReservationRepository{
		db: db,
	}
}

// Create persists a new reservation
func (r *ReservationRepository) Create(ctx context.Context, reservation *booking.Reservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

// GetByID retrieves a reservation, nil when absent
func (r *ReservationRepository) GetByID(ctx context.Context, id uuid.UUID) (*booking.Reservation, error) {
	var reservation booking.Reservation
	err := r.db.WithContext(ctx).
		Where("reservation_id = ?", id).
		First(&reservation).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &reservation, nil
}

// Update saves all fields of an existing reservation
func (r *ReservationRepository) Update(ctx context.Context, reservation *booking.Reservation) error {
	return r.db.WithContext(ctx).Save(reservation).Error
}

// UpdateStatus sets the status of a reservation unconditionally
func (r *ReservationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status booking.ReservationStatus) error {
	return r.db.WithContext(ctx).
		Model(&booking.Reservation{}).
		Where("reservation_id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}

// TransitionStatus moves the reservation from one status to another in a
// single conditional UPDATE. The affected-rows count tells the caller
// whether this invocation won the transition; a concurrent or repeated
// callback for the same order sees zero rows and does nothing.
func (r *ReservationRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to booking.ReservationStatus, orderRef string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&booking.Reservation{}).
		Where("reservation_id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":            to,
			"payment_order_ref": orderRef,
			"updated_at":        time.Now(),
			"version":           gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CountByOccurrenceAndStatus counts the reservations of one occurrence
// whose status is in the given set. The occurrence is matched by its
// index within the course, the key reservations store.
func (r *ReservationRepository) CountByOccurrenceAndStatus(ctx context.Context, courseID uuid.UUID, occurrenceIndex int, statuses []booking.ReservationStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&booking.Reservation{}).
		Where("course_id = ? AND occurrence_index = ? AND status IN ?", courseID, occurrenceIndex, statuses).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// GetByOccurrence retrieves all reservations of one occurrence
func (r *ReservationRepository) GetByOccurrence(ctx context.Context, courseID uuid.UUID, occurrenceIndex int) ([]*booking.Reservation, error) {
	var reservations []*booking.Reservation
	err := r.db.WithContext(ctx).
		Where("course_id = ? AND occurrence_index = ?", courseID, occurrenceIndex).
		Order("created_at ASC").
		Find(&reservations).Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}
