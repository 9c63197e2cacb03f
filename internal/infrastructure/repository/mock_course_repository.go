package repository

import (
	"context"
	"sync"

	booking "corsi-booking/internal/domain/booking"
	interfaces "corsi-booking/internal/interfaces/infrastructure"

	"github.com/google/uuid"
)

var _ interfaces.CourseRepository = (*MockCourseRepository)(nil)

// MockCourseRepository is an in-memory CourseRepository for tests and
// development.
type MockCourseRepository struct {
	mu      sync.RWMutex
	courses map[uuid.UUID]*booking.Course
}

func NewMockCourseRepository() *MockCourseRepository {
	return &MockCourseRepository{
		courses: make(map[uuid.UUID]*booking.Course),
	}
}

func (r *MockCourseRepository) Create(_ context.Context, course *booking.Course) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if course.CourseID == uuid.Nil {
		course.CourseID = uuid.New()
	}
	copied := *course
	r.courses[course.CourseID] = &copied
	return nil
}

func (r *MockCourseRepository) GetByID(_ context.Context, id uuid.UUID) (*booking.Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	course, ok := r.courses[id]
	if !ok {
		return nil, nil
	}
	copied := *course
	return &copied, nil
}

func (r *MockCourseRepository) GetOccurrences(_ context.Context, courseID uuid.UUID) ([]booking.Occurrence, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	course, ok := r.courses[courseID]
	if !ok {
		return nil, nil
	}
	return append([]booking.Occurrence(nil), course.Occurrences...), nil
}

func (r *MockCourseRepository) ListPublished(_ context.Context) ([]*booking.Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var courses []*booking.Course
	for _, course := range r.courses {
		if course.Published {
			copied := *course
			courses = append(courses, &copied)
		}
	}
	return courses, nil
}
