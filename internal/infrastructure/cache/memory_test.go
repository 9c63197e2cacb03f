package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	interfaces "corsi-booking/internal/interfaces/infrastructure"

	"github.com/google/uuid"
)

func TestMemoryCache_ClaimSeat(t *testing.T) {
	m := NewMemoryCache()
	ctx := context.Background()
	courseID := uuid.New()

	// Unseeded counter reports missing, not zero.
	if _, err := m.ClaimSeat(ctx, courseID, 0); !errors.Is(err, interfaces.ErrSeatCounterMissing) {
		t.Fatalf("Expected ErrSeatCounterMissing, got %v", err)
	}

	if err := m.SetFreeSeats(ctx, courseID, 0, 2, time.Hour); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if remaining, err := m.ClaimSeat(ctx, courseID, 0); err != nil || remaining != 1 {
		t.Fatalf("Expected 1 remaining, got %d, %v", remaining, err)
	}
	if remaining, err := m.ClaimSeat(ctx, courseID, 0); err != nil || remaining != 0 {
		t.Fatalf("Expected 0 remaining, got %d, %v", remaining, err)
	}
	if _, err := m.ClaimSeat(ctx, courseID, 0); !errors.Is(err, interfaces.ErrNoSeatsLeft) {
		t.Fatalf("Expected ErrNoSeatsLeft, got %v", err)
	}

	if remaining, err := m.ReleaseSeat(ctx, courseID, 0); err != nil || remaining != 1 {
		t.Fatalf("Expected release to restore 1 seat, got %d, %v", remaining, err)
	}
	if _, err := m.ClaimSeat(ctx, courseID, 0); err != nil {
		t.Fatalf("Expected claim after release to succeed, got %v", err)
	}
}

func TestMemoryCache_SetFreeSeats_DoesNotOverwrite(t *testing.T) {
	m := NewMemoryCache()
	ctx := context.Background()
	courseID := uuid.New()

	if err := m.SetFreeSeats(ctx, courseID, 0, 5, time.Hour); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := m.ClaimSeat(ctx, courseID, 0); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// A concurrent seed must not hand back the claimed seat.
	if err := m.SetFreeSeats(ctx, courseID, 0, 5, time.Hour); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	seats, err := m.GetFreeSeats(ctx, courseID, 0)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if seats != 4 {
		t.Errorf("Expected counter to stay at 4 after re-seed, got %d", seats)
	}
}

func TestMemoryCache_ClaimSeat_Concurrent(t *testing.T) {
	m := NewMemoryCache()
	ctx := context.Background()
	courseID := uuid.New()

	const capacity = 5
	const attempts = 50

	if err := m.SetFreeSeats(ctx, courseID, 0, capacity, time.Hour); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.ClaimSeat(ctx, courseID, 0)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	claimed := 0
	for err := range results {
		if err == nil {
			claimed++
		} else if !errors.Is(err, interfaces.ErrNoSeatsLeft) {
			t.Errorf("Unexpected error: %v", err)
		}
	}

	if claimed != capacity {
		t.Errorf("Expected exactly %d successful claims, got %d", capacity, claimed)
	}
}

func TestMemoryCache_FormToken_SingleUse(t *testing.T) {
	m := NewMemoryCache()
	ctx := context.Background()

	if err := m.IssueFormToken(ctx, "tok-1", time.Minute); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	valid, err := m.ConsumeFormToken(ctx, "tok-1")
	if err != nil || !valid {
		t.Fatalf("Expected first consume to succeed, got %v, %v", valid, err)
	}

	valid, err = m.ConsumeFormToken(ctx, "tok-1")
	if err != nil || valid {
		t.Fatalf("Expected second consume to fail, got %v, %v", valid, err)
	}

	valid, err = m.ConsumeFormToken(ctx, "never-issued")
	if err != nil || valid {
		t.Fatalf("Expected unknown token to fail, got %v, %v", valid, err)
	}
}

func TestMemoryCache_FormToken_Expired(t *testing.T) {
	m := NewMemoryCache()
	ctx := context.Background()

	if err := m.IssueFormToken(ctx, "tok-2", -time.Second); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	valid, err := m.ConsumeFormToken(ctx, "tok-2")
	if err != nil || valid {
		t.Fatalf("Expected expired token to fail, got %v, %v", valid, err)
	}
}

func TestMemoryCache_GetSetDelete(t *testing.T) {
	m := NewMemoryCache()
	ctx := context.Background()

	if err := m.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	value, err := m.Get(ctx, "k")
	if err != nil || value != "v" {
		t.Fatalf("Expected v, got %q, %v", value, err)
	}

	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := m.Get(ctx, "k"); err == nil {
		t.Fatal("Expected deleted key to be missing")
	}
}
