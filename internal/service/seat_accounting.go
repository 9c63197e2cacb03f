package service

import (
	"context"
	"fmt"

	booking "corsi-booking/internal/domain/booking"
	interfaces "corsi-booking/internal/interfaces/infrastructure"

	"github.com/google/uuid"
)

// SeatAccounting computes occupied seats per occurrence. Read-only,
// side-effect-free, safe to call concurrently; the reservation store is
// the source of truth.
type SeatAccounting struct {
	reservationRepo interfaces.ReservationRepository
}

func NewSeatAccounting(reservationRepo interfaces.ReservationRepository) *SeatAccounting {
	return &SeatAccounting{
		reservationRepo: reservationRepo,
	}
}

// CountOccupiedSeats counts the reservations holding a seat on the given
// occurrence: confirmed ones and pending ones whose payment is in flight.
func (s *SeatAccounting) CountOccupiedSeats(ctx context.Context, courseID uuid.UUID, occurrenceIndex int) (int, error) {
	count, err := s.reservationRepo.CountByOccurrenceAndStatus(ctx, courseID, occurrenceIndex, booking.CountedStatuses())
	if err != nil {
		return 0, fmt.Errorf("failed to count occupied seats: %w", err)
	}
	return int(count), nil
}

// OccupiedAndFull resolves both the occupied count and whether the
// occurrence can no longer admit a booking. A nil occurrence or zero
// capacity is full: missing seat data denies, never oversells.
func (s *SeatAccounting) OccupiedAndFull(ctx context.Context, occurrence *booking.Occurrence) (int, bool, error) {
	if occurrence == nil || occurrence.Capacity <= 0 {
		return 0, true, nil
	}

	occupied, err := s.CountOccupiedSeats(ctx, occurrence.CourseID, occurrence.Index)
	if err != nil {
		return 0, true, err
	}

	return occupied, occurrence.Full(occupied), nil
}
