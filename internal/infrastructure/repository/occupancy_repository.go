package repository

import (
	"context"
	"fmt"

	booking "corsi-booking/internal/domain/booking"
	interfaces "corsi-booking/internal/interfaces/infrastructure"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
)

var _ interfaces.OccupancyRepository = (*OccupancyRepository)(nil)

// OccupancyRepository serves the per-occurrence seat report with raw SQL
// over sqlx. It shares the connection pool of the GORM handle.
type OccupancyRepository struct {
	db *sqlx.DB
}

// NewOccupancyRepository wraps the sql.DB behind the GORM handle.
func NewOccupancyRepository(gormDB *gorm.DB) (*OccupancyRepository, error) {
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return &OccupancyRepository{
		db: sqlx.NewDb(sqlDB, "pgx"),
	}, nil
}

const courseOccupancyQuery = `
SELECT o.idx,
       o.date,
       o.duration,
       o.capacity,
       COUNT(r.reservation_id) AS occupied
FROM course_occurrences o
LEFT JOIN reservations r
       ON r.course_id = o.course_id
      AND r.occurrence_index = o.idx
      AND r.status IN (?)
WHERE o.course_id = ?
GROUP BY o.idx, o.date, o.duration, o.capacity
ORDER BY o.idx`

// CourseOccupancy returns one row per occurrence of the course with the
// number of seats taken by counted reservations.
func (r *OccupancyRepository) CourseOccupancy(ctx context.Context, courseID uuid.UUID) ([]booking.OccupancyRow, error) {
	statuses := booking.CountedStatuses()
	statusValues := make([]string, 0, len(statuses))
	for _, s := range statuses {
		statusValues = append(statusValues, string(s))
	}

	query, args, err := sqlx.In(courseOccupancyQuery, statusValues, courseID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to build occupancy query: %w", err)
	}
	query = r.db.Rebind(query)

	var rows []booking.OccupancyRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query course occupancy: %w", err)
	}

	return rows, nil
}
