package repository

import (
	"context"

	booking "corsi-booking/internal/domain/booking"
	interfaces "corsi-booking/internal/interfaces/infrastructure"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var _ interfaces.CourseRepository = (*CourseRepository)(nil)

// CourseRepository implements CourseRepository using GORM
type CourseRepository struct {
	db *gorm.DB
}

// NewCourseRepository creates a new GORM course repository
func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{
		db: db,
	}
}

// Create creates a new course with its occurrences
func (r *CourseRepository) Create(ctx context.Context, course *booking.Course) error {
	return r.db.WithContext(ctx).Create(course).Error
}

// GetByID retrieves a course with its occurrences, nil when absent
func (r *CourseRepository) GetByID(ctx context.Context, id uuid.UUID) (*booking.Course, error) {
	var course booking.Course
	err := r.db.WithContext(ctx).
		Preload("Occurrences", func(db *gorm.DB) *gorm.DB {
			return db.Order("idx ASC")
		}).
		Where("course_id = ?", id).
		First(&course).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &course, nil
}

// GetOccurrences retrieves the occurrences of a course ordered by index
func (r *CourseRepository) GetOccurrences(ctx context.Context, courseID uuid.UUID) ([]booking.Occurrence, error) {
	var occurrences []booking.Occurrence
	err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("idx ASC").
		Find(&occurrences).Error
	if err != nil {
		return nil, err
	}
	return occurrences, nil
}

// ListPublished retrieves all published courses with their occurrences
func (r *CourseRepository) ListPublished(ctx context.Context) ([]*booking.Course, error) {
	var courses []*booking.Course
	err := r.db.WithContext(ctx).
		Preload("Occurrences", func(db *gorm.DB) *gorm.DB {
			return db.Order("idx ASC")
		}).
		Where("published = ?", true).
		Order("created_at DESC").
		Find(&courses).Error
	if err != nil {
		return nil, err
	}
	return courses, nil
}
