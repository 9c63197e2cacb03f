package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	interfaces "corsi-booking/internal/interfaces/infrastructure"

	"github.com/google/uuid"
)

var _ interfaces.CacheService = (*MemoryCache)(nil)

// MemoryCache is a process-local CacheService for development and tests.
// TTLs are honored lazily: expired entries are dropped on access.
type MemoryCache struct {
	mu      sync.Mutex
	seats   map[string]int
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		seats:   make(map[string]int),
		entries: make(map[string]memoryEntry),
	}
}

func (m *MemoryCache) GetFreeSeats(_ context.Context, courseID uuid.UUID, occurrenceIndex int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seats, ok := m.seats[seatKey(courseID, occurrenceIndex)]
	if !ok {
		return -1, interfaces.ErrSeatCounterMissing
	}
	return seats, nil
}

func (m *MemoryCache) SetFreeSeats(_ context.Context, courseID uuid.UUID, occurrenceIndex int, seats int, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := seatKey(courseID, occurrenceIndex)
	if _, ok := m.seats[key]; ok {
		return nil
	}
	m.seats[key] = seats
	return nil
}

func (m *MemoryCache) ClaimSeat(_ context.Context, courseID uuid.UUID, occurrenceIndex int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := seatKey(courseID, occurrenceIndex)
	seats, ok := m.seats[key]
	if !ok {
		return -1, interfaces.ErrSeatCounterMissing
	}
	if seats <= 0 {
		return -1, interfaces.ErrNoSeatsLeft
	}
	m.seats[key] = seats - 1
	return seats - 1, nil
}

func (m *MemoryCache) ReleaseSeat(_ context.Context, courseID uuid.UUID, occurrenceIndex int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := seatKey(courseID, occurrenceIndex)
	m.seats[key]++
	return m.seats[key], nil
}

func (m *MemoryCache) IssueFormToken(_ context.Context, token string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[tokenKey(token)] = memoryEntry{value: "1", expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *MemoryCache) ConsumeFormToken(_ context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := tokenKey(token)
	entry, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	delete(m.entries, key)
	if time.Now().After(entry.expiresAt) {
		return false, nil
	}
	return true, nil
}

func (m *MemoryCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return "", fmt.Errorf("key not found: %s", key)
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(m.entries, key)
		return "", fmt.Errorf("key not found: %s", key)
	}
	return entry.value, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	m.entries[key] = memoryEntry{value: value, expiresAt: expiresAt}
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

func (m *MemoryCache) Ping(_ context.Context) error {
	return nil
}

func (m *MemoryCache) Close() error {
	return nil
}
