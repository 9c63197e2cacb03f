package service

import (
	"context"
	"testing"

	booking "corsi-booking/internal/domain/booking"
	"corsi-booking/internal/infrastructure/repository"

	"github.com/google/uuid"
)

func addReservation(t *testing.T, repo *repository.MockReservationRepository, courseID uuid.UUID, index int, status booking.ReservationStatus) {
	t.Helper()
	err := repo.Create(context.Background(), &booking.Reservation{
		ReservationID:   uuid.New(),
		CourseID:        courseID,
		OccurrenceIndex: index,
		FirstName:       "Test",
		LastName:        "Attendee",
		Email:           "attendee@example.com",
		Status:          status,
	})
	if err != nil {
		t.Fatalf("Failed to create reservation: %v", err)
	}
}

func TestSeatAccounting_CountOccupiedSeats(t *testing.T) {
	repo := repository.NewMockReservationRepository()
	seats := NewSeatAccounting(repo)
	courseID := uuid.New()

	addReservation(t, repo, courseID, 0, booking.StatusConfirmed)
	addReservation(t, repo, courseID, 0, booking.StatusPendingPayment)
	addReservation(t, repo, courseID, 0, booking.StatusDraft)
	addReservation(t, repo, courseID, 1, booking.StatusConfirmed)

	occupied, err := seats.CountOccupiedSeats(context.Background(), courseID, 0)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Confirmed and pending hold seats; drafts do not. Occurrence 1 is a
	// separate pool.
	if occupied != 2 {
		t.Errorf("Expected 2 occupied seats, got %d", occupied)
	}
}

func TestSeatAccounting_OccupiedAndFull(t *testing.T) {
	repo := repository.NewMockReservationRepository()
	seats := NewSeatAccounting(repo)
	courseID := uuid.New()

	occurrence := &booking.Occurrence{CourseID: courseID, Index: 0, Capacity: 2}

	occupied, full, err := seats.OccupiedAndFull(context.Background(), occurrence)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if occupied != 0 || full {
		t.Errorf("Expected empty occurrence not full, got occupied=%d full=%v", occupied, full)
	}

	addReservation(t, repo, courseID, 0, booking.StatusConfirmed)
	addReservation(t, repo, courseID, 0, booking.StatusPendingPayment)

	occupied, full, err = seats.OccupiedAndFull(context.Background(), occurrence)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if occupied != 2 || !full {
		t.Errorf("Expected occurrence at capacity to be full, got occupied=%d full=%v", occupied, full)
	}
}

func TestSeatAccounting_OccupiedAndFull_MissingOrZeroCapacity(t *testing.T) {
	repo := repository.NewMockReservationRepository()
	seats := NewSeatAccounting(repo)

	_, full, err := seats.OccupiedAndFull(context.Background(), nil)
	if err != nil || !full {
		t.Errorf("Expected nil occurrence to be full, got full=%v err=%v", full, err)
	}

	zero := &booking.Occurrence{CourseID: uuid.New(), Index: 0, Capacity: 0}
	_, full, err = seats.OccupiedAndFull(context.Background(), zero)
	if err != nil || !full {
		t.Errorf("Expected zero-capacity occurrence to be full, got full=%v err=%v", full, err)
	}
}
