package booking

import (
	"time"

	"github.com/google/uuid"
)

// AudienceType classifies who a course is aimed at. Business courses
// require organization details on every booking.
type AudienceType string

const (
	AudiencePopulation AudienceType = "population"
	AudienceBusiness   AudienceType = "business"
)

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	StatusDraft          ReservationStatus = "draft"
	StatusPendingPayment ReservationStatus = "pending_payment"
	StatusConfirmed      ReservationStatus = "confirmed"
)

// CountedStatuses returns the statuses that occupy a seat. A pending
// reservation already holds its seat while the payment is in flight.
func CountedStatuses() []ReservationStatus {
	return []ReservationStatus{StatusConfirmed, StatusPendingPayment}
}

// Course represents a bookable course. The booking subsystem only reads
// courses; they are edited elsewhere.
type Course struct {
	CourseID        uuid.UUID    `json:"course_id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	Title           string       `json:"title" gorm:"not null"`
	Audience        AudienceType `json:"audience" gorm:"type:text;not null;default:population"`
	LinkedProductID int64        `json:"linked_product_id" gorm:"not null;default:0"`
	Published       bool         `json:"published" gorm:"not null;default:false"`
	Occurrences     []Occurrence `json:"occurrences,omitempty" gorm:"foreignKey:CourseID;references:CourseID"`
	CreatedAt       time.Time    `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time    `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the courses table name.
func (Course) TableName() string {
	return "courses"
}

// Paid reports whether bookings for this course must go through the
// payment flow. The payment gateway itself may still be unavailable;
// that check belongs to the booking service.
func (c *Course) Paid() bool {
	return c.LinkedProductID > 0
}

// OccurrenceAt returns the occurrence with the given index, or nil when
// no such occurrence exists. Reservations reference occurrences by their
// index within the course, so the index is the lookup key, not the row id.
func (c *Course) OccurrenceAt(index int) *Occurrence {
	for i := range c.Occurrences {
		if c.Occurrences[i].Index == index {
			return &c.Occurrences[i]
		}
	}
	return nil
}

// Occurrence is one scheduled date of a course with its own seat capacity.
// The surrogate ID exists only for storage; the booking contract identifies
// an occurrence by (course_id, index).
type Occurrence struct {
	ID       uint      `json:"-" gorm:"primaryKey;autoIncrement"`
	CourseID uuid.UUID `json:"course_id" gorm:"type:uuid;not null;uniqueIndex:idx_course_occurrence,priority:1"`
	Index    int       `json:"index" gorm:"column:idx;not null;uniqueIndex:idx_course_occurrence,priority:2"`
	Date     time.Time `json:"date" gorm:"not null"`
	Duration string    `json:"duration"`
	Capacity int       `json:"capacity" gorm:"not null;default:0;check:capacity >= 0"`
}

// TableName sets the occurrences table name.
func (Occurrence) TableName() string {
	return "course_occurrences"
}

// Full reports whether the occurrence cannot admit another booking given
// the current occupied count. A capacity of zero is always full: when the
// seat data is missing we deny, never oversell.
func (o *Occurrence) Full(occupied int) bool {
	if o.Capacity <= 0 {
		return true
	}
	return occupied >= o.Capacity
}

// Reservation is one party's claim on one seat of one occurrence.
type Reservation struct {
	ReservationID   uuid.UUID         `json:"reservation_id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	CourseID        uuid.UUID         `json:"course_id" gorm:"type:uuid;not null;index:idx_reservation_occurrence,priority:1"`
	OccurrenceIndex int               `json:"occurrence_index" gorm:"not null;index:idx_reservation_occurrence,priority:2"`
	FirstName       string            `json:"first_name" gorm:"not null"`
	LastName        string            `json:"last_name" gorm:"not null"`
	Email           string            `json:"email" gorm:"not null"`
	Phone           string            `json:"phone"`
	OrganizationName string           `json:"organization_name"`
	TaxID           string            `json:"tax_id"`
	Status          ReservationStatus `json:"status" gorm:"type:text;not null;default:draft;index:idx_reservation_occurrence,priority:3"`
	PaymentOrderRef string            `json:"payment_order_ref"`
	CreatedAt       time.Time         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time         `json:"updated_at" gorm:"autoUpdateTime"`
	Version         int               `json:"version" gorm:"default:1"`
}

// TableName sets the reservations table name.
func (Reservation) TableName() string {
	return "reservations"
}

// Business reports whether the reservation was made on behalf of an
// organization rather than an individual.
func (r *Reservation) Business() bool {
	return r.OrganizationName != ""
}

// AttendeeName is the display name used in notifications.
func (r *Reservation) AttendeeName() string {
	return r.FirstName + " " + r.LastName
}

// OccupancyRow is one line of the per-course occupancy report: how many
// seats of an occurrence are taken by counted reservations.
type OccupancyRow struct {
	OccurrenceIndex int       `json:"occurrence_index" db:"idx"`
	Date            time.Time `json:"date" db:"date"`
	Duration        string    `json:"duration" db:"duration"`
	Capacity        int       `json:"capacity" db:"capacity"`
	Occupied        int       `json:"occupied" db:"occupied"`
}

// Free returns the number of seats still available, never negative.
func (row *OccupancyRow) Free() int {
	free := row.Capacity - row.Occupied
	if free < 0 {
		return 0
	}
	return free
}

// IdempotencyKey records a processed booking submission so that a retry
// with the same key replays the stored response instead of booking twice.
type IdempotencyKey struct {
	Key          string    `json:"key"`
	RequestHash  string    `json:"request_hash"`
	ResponseData string    `json:"response_data"`
	StatusCode   int       `json:"status_code"`
	ProcessedAt  time.Time `json:"processed_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsExpired reports whether the key is past its retention window.
func (k *IdempotencyKey) IsExpired() bool {
	return time.Now().After(k.ExpiresAt)
}
