package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	booking "corsi-booking/internal/domain/booking"
	interfaces "corsi-booking/internal/interfaces/infrastructure"
	serviceInterfaces "corsi-booking/internal/interfaces/service"
	"corsi-booking/pkg/logger"
	"corsi-booking/pkg/validator"

	"github.com/google/uuid"
)

var _ serviceInterfaces.BookingService = (*BookingService)(nil)
var _ serviceInterfaces.NotificationDispatcher = (*BookingService)(nil)

type BookingRequest = serviceInterfaces.BookingRequest
type BookingOutcome = serviceInterfaces.BookingOutcome

// BookingService admits booking submissions against the seat inventory
// and owns the reservation lifecycle up to the payment handoff.
type BookingService struct {
	courseRepo      interfaces.CourseRepository
	reservationRepo interfaces.ReservationRepository
	occupancyRepo   interfaces.OccupancyRepository
	seats           *SeatAccounting
	cacheService    interfaces.CacheService
	paymentStaging  interfaces.PaymentStaging
	queueService    interfaces.QueueService
	idempotencyRepo interfaces.IdempotencyRepository
	gateway         interfaces.NotificationGateway

	confirmationURL string
	seatCounterTTL  time.Duration
}

func NewBookingService(
	courseRepo interfaces.CourseRepository,
	reservationRepo interfaces.ReservationRepository,
	occupancyRepo interfaces.OccupancyRepository,
	cacheService interfaces.CacheService,
	paymentStaging interfaces.PaymentStaging,
	queueService interfaces.QueueService,
	idempotencyRepo interfaces.IdempotencyRepository,
	gateway interfaces.NotificationGateway,
	confirmationURL string,
	seatCounterTTL time.Duration,
) *BookingService {
	return &BookingService{
		courseRepo:      courseRepo,
		reservationRepo: reservationRepo,
		occupancyRepo:   occupancyRepo,
		seats:           NewSeatAccounting(reservationRepo),
		cacheService:    cacheService,
		paymentStaging:  paymentStaging,
		queueService:    queueService,
		idempotencyRepo: idempotencyRepo,
		gateway:         gateway,
		confirmationURL: confirmationURL,
		seatCounterTTL:  seatCounterTTL,
	}
}

// Seats exposes the seat accounting component.
func (s *BookingService) Seats() *SeatAccounting {
	return s.seats
}

// SubmitBooking validates a submission, admits it against the occurrence
// capacity and creates the reservation: confirmed for free courses,
// pending_payment with a checkout redirect for paid ones.
func (s *BookingService) SubmitBooking(ctx context.Context, req *BookingRequest) (*BookingOutcome, error) {
	normalize(req)

	logger.Info("Processing booking for course %s, occurrence %q, attendee %s", req.CourseID, req.OccurrenceChoice, req.Email)

	if req.IdempotencyKey != "" && s.idempotencyRepo != nil {
		existingKey, isDuplicate, err := s.checkIdempotency(ctx, req.IdempotencyKey, req)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if isDuplicate {
			var cachedOutcome BookingOutcome
			if err := json.Unmarshal([]byte(existingKey.ResponseData), &cachedOutcome); err == nil {
				logger.Info("Returning cached outcome for idempotency key %s", req.IdempotencyKey)
				return &cachedOutcome, nil
			}
		}
	}

	fieldMessages := s.validateShape(req)

	course, err := s.courseRepo.GetByID(ctx, req.CourseID)
	if err != nil {
		return nil, booking.NewStorageError(err)
	}

	// Business bookings additionally require the organization fields. The
	// check needs the course's audience, so it runs after the lookup but
	// still joins the aggregate error set.
	if course != nil && course.Audience == booking.AudienceBusiness {
		if req.OrganizationName == "" {
			fieldMessages = append(fieldMessages, "the field organization_name is required")
		}
		if req.TaxID == "" {
			fieldMessages = append(fieldMessages, "the field tax_id is required")
		}
	}

	if len(fieldMessages) > 0 {
		return nil, booking.NewValidationError(fieldMessages)
	}

	if course == nil || !course.Published {
		return nil, booking.NewInvalidOccurrenceError(req.OccurrenceChoice)
	}

	occurrence := s.resolveOccurrence(course, req.OccurrenceChoice)
	if occurrence == nil {
		return nil, booking.NewInvalidOccurrenceError(req.OccurrenceChoice)
	}

	// Server-side capacity check. Clients gray out full slots, but that is
	// a hint, never a guarantee.
	occupied, full, err := s.seats.OccupiedAndFull(ctx, occurrence)
	if err != nil {
		return nil, booking.NewStorageError(err)
	}
	if full {
		return nil, booking.NewSoldOutError()
	}

	claimed, err := s.claimSeat(ctx, course.CourseID, occurrence, occupied)
	if err != nil {
		if errors.Is(err, interfaces.ErrNoSeatsLeft) {
			return nil, booking.NewSoldOutError()
		}
		// The counter is an admission guard on top of the store count. If
		// the cache is unreachable the booking proceeds on the store count
		// alone.
		logger.Warn("Seat counter unavailable for course %s occurrence %d: %v", course.CourseID, occurrence.Index, err)
	}

	isPaid := course.Paid() && s.paymentStaging != nil && s.paymentStaging.Available()

	status := booking.StatusConfirmed
	if isPaid {
		status = booking.StatusPendingPayment
	}

	reservation := &booking.Reservation{
		ReservationID:    uuid.New(),
		CourseID:         course.CourseID,
		OccurrenceIndex:  occurrence.Index,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Email:            req.Email,
		Phone:            req.Phone,
		OrganizationName: req.OrganizationName,
		TaxID:            req.TaxID,
		Status:           status,
	}

	if err := s.reservationRepo.Create(ctx, reservation); err != nil {
		if claimed {
			if _, releaseErr := s.cacheService.ReleaseSeat(ctx, course.CourseID, occurrence.Index); releaseErr != nil {
				logger.Error("Failed to release claimed seat after create failure: %v", releaseErr)
			}
		}
		logger.Error("Failed to create reservation: %v", err)
		return nil, booking.NewStorageError(err)
	}

	outcome := &BookingOutcome{
		ReservationID: reservation.ReservationID,
		Status:        status,
	}

	if isPaid {
		if err := s.stagePayment(ctx, reservation, course, occurrence); err != nil {
			return nil, booking.NewStorageError(err)
		}
		outcome.PaymentRequired = true
		outcome.RedirectURL = s.paymentStaging.CheckoutURL()
		logger.Info("Reservation %s pending payment, redirecting to checkout", reservation.ReservationID)
	} else {
		// Free course: confirmed right away, notify both parties now.
		s.enqueueNotifications(ctx, reservation.ReservationID)
		outcome.RedirectURL = s.confirmationURL
		logger.Info("Reservation %s confirmed, %d seats were occupied before this one", reservation.ReservationID, occupied)
	}

	if req.IdempotencyKey != "" && s.idempotencyRepo != nil {
		if err := s.storeIdempotencyResult(ctx, req.IdempotencyKey, req, outcome); err != nil {
			logger.Warn("Failed to store idempotency result: %v", err)
		}
	}

	return outcome, nil
}

// validateShape runs the struct-tag validation and returns one message per
// offending field so the caller sees the complete set at once.
func (s *BookingService) validateShape(req *BookingRequest) []string {
	if err := validator.ValidateStruct(req); err != nil {
		return validator.Messages(err)
	}
	return nil
}

// resolveOccurrence parses the raw choice and looks it up on the course.
// The choice "0" is the first occurrence and perfectly valid; only an
// empty string means unset, and that was already rejected as a missing
// field.
func (s *BookingService) resolveOccurrence(course *booking.Course, choice string) *booking.Occurrence {
	index, err := strconv.Atoi(choice)
	if err != nil || index < 0 {
		return nil
	}
	return course.OccurrenceAt(index)
}

// claimSeat decrements the occurrence's free-seat counter, seeding it from
// the store count when it is not cached yet. Reports whether a seat was
// actually claimed so the caller can roll back on a failed create.
func (s *BookingService) claimSeat(ctx context.Context, courseID uuid.UUID, occurrence *booking.Occurrence, occupied int) (bool, error) {
	remaining, err := s.cacheService.ClaimSeat(ctx, courseID, occurrence.Index)
	if errors.Is(err, interfaces.ErrSeatCounterMissing) {
		free := occurrence.Capacity - occupied
		if free < 0 {
			free = 0
		}
		if setErr := s.cacheService.SetFreeSeats(ctx, courseID, occurrence.Index, free, s.seatCounterTTL); setErr != nil {
			return false, setErr
		}
		remaining, err = s.cacheService.ClaimSeat(ctx, courseID, occurrence.Index)
	}
	if err != nil {
		return false, err
	}

	logger.Debug("Claimed seat for course %s occurrence %d, %d remaining", courseID, occurrence.Index, remaining)
	return true, nil
}

// stagePayment prepares the external checkout: wipe whatever a previous
// abandoned submission left in the session cart, then stage exactly one
// line carrying the reservation reference.
func (s *BookingService) stagePayment(ctx context.Context, reservation *booking.Reservation, course *booking.Course, occurrence *booking.Occurrence) error {
	sessionID := reservation.Email

	if err := s.paymentStaging.ClearPending(ctx, sessionID); err != nil {
		logger.Warn("Failed to clear pending cart for %s: %v", sessionID, err)
	}

	line := interfaces.PaymentLine{
		ReservationID:  reservation.ReservationID,
		ProductID:      course.LinkedProductID,
		CourseTitle:    course.Title,
		OccurrenceDate: occurrence.Date,
		Duration:       occurrence.Duration,
	}

	if err := s.paymentStaging.StageLine(ctx, sessionID, line); err != nil {
		logger.Error("Failed to stage payment line for reservation %s: %v", reservation.ReservationID, err)
		return err
	}

	return nil
}

func (s *BookingService) enqueueNotifications(ctx context.Context, reservationID uuid.UUID) {
	job := interfaces.NotificationJob{
		ReservationID: reservationID,
		Timestamp:     time.Now(),
	}
	if err := s.queueService.EnqueueNotification(ctx, job); err != nil {
		logger.Error("Failed to enqueue notifications for reservation %s: %v", reservationID, err)
	}
}

// DispatchReservationNotifications resolves the reservation and sends the
// admin and attendee messages. Called from the queue workers; a gateway
// failure is logged, not retried, per the fire-and-forget contract.
func (s *BookingService) DispatchReservationNotifications(ctx context.Context, reservationID uuid.UUID) error {
	reservation, err := s.reservationRepo.GetByID(ctx, reservationID)
	if err != nil {
		return fmt.Errorf("failed to load reservation %s: %w", reservationID, err)
	}
	if reservation == nil {
		logger.Warn("Reservation %s not found, skipping notifications", reservationID)
		return nil
	}

	course, err := s.courseRepo.GetByID(ctx, reservation.CourseID)
	if err != nil {
		return fmt.Errorf("failed to load course %s: %w", reservation.CourseID, err)
	}
	if course == nil {
		logger.Warn("Course %s of reservation %s not found, skipping notifications", reservation.CourseID, reservationID)
		return nil
	}

	occurrence := course.OccurrenceAt(reservation.OccurrenceIndex)
	if occurrence == nil {
		logger.Warn("Occurrence %d of course %s no longer exists, skipping notifications for reservation %s",
			reservation.OccurrenceIndex, course.CourseID, reservationID)
		return nil
	}

	if err := s.gateway.NotifyAdmin(ctx, reservation, course, occurrence); err != nil {
		logger.Error("Failed to notify admin for reservation %s: %v", reservationID, err)
	}
	if err := s.gateway.NotifyAttendee(ctx, reservation, course, occurrence); err != nil {
		logger.Error("Failed to notify attendee for reservation %s: %v", reservationID, err)
	}

	return nil
}

// GetCourse returns the course with its occurrences, nil when absent.
func (s *BookingService) GetCourse(ctx context.Context, courseID uuid.UUID) (*booking.Course, error) {
	course, err := s.courseRepo.GetByID(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	return course, nil
}

// GetCourseOccupancy returns the per-occurrence seat report.
func (s *BookingService) GetCourseOccupancy(ctx context.Context, courseID uuid.UUID) ([]booking.OccupancyRow, error) {
	if s.occupancyRepo != nil {
		rows, err := s.occupancyRepo.CourseOccupancy(ctx, courseID)
		if err != nil {
			return nil, fmt.Errorf("failed to get course occupancy: %w", err)
		}
		return rows, nil
	}

	// Without a reporting repository the rows are assembled from the
	// catalog and per-occurrence counts.
	occurrences, err := s.courseRepo.GetOccurrences(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get occurrences: %w", err)
	}

	rows := make([]booking.OccupancyRow, 0, len(occurrences))
	for i := range occurrences {
		occ := &occurrences[i]
		occupied, err := s.seats.CountOccupiedSeats(ctx, courseID, occ.Index)
		if err != nil {
			return nil, err
		}
		rows = append(rows, booking.OccupancyRow{
			OccurrenceIndex: occ.Index,
			Date:            occ.Date,
			Duration:        occ.Duration,
			Capacity:        occ.Capacity,
			Occupied:        occupied,
		})
	}
	return rows, nil
}

func (s *BookingService) checkIdempotency(ctx context.Context, key string, req *BookingRequest) (*booking.IdempotencyKey, bool, error) {
	existingKey, err := s.idempotencyRepo.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, interfaces.ErrIdempotencyKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to check idempotency key: %w", err)
	}

	if existingKey != nil {
		if existingKey.IsExpired() {
			if err := s.idempotencyRepo.Delete(ctx, key); err != nil {
				logger.Warn("Failed to delete expired idempotency key %s: %v", key, err)
			}
			return nil, false, nil
		}

		requestHash := s.generateRequestHash(req)
		if existingKey.RequestHash == requestHash {
			return existingKey, true, nil
		}
		return nil, false, fmt.Errorf("idempotency key already used with different request data")
	}

	return nil, false, nil
}

func (s *BookingService) storeIdempotencyResult(ctx context.Context, key string, req *BookingRequest, outcome *BookingOutcome) error {
	responseJSON, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}

	idempotencyKey := &booking.IdempotencyKey{
		Key:          key,
		RequestHash:  s.generateRequestHash(req),
		ResponseData: string(responseJSON),
		StatusCode:   200,
		ProcessedAt:  time.Now(),
		ExpiresAt:    time.Now().Add(24 * time.Hour),
		CreatedAt:    time.Now(),
	}

	return s.idempotencyRepo.Create(ctx, idempotencyKey)
}

func (s *BookingService) generateRequestHash(req *BookingRequest) string {
	data := map[string]any{
		"course_id":         req.CourseID.String(),
		"occurrence_choice": req.OccurrenceChoice,
		"email":             req.Email,
		"request_data":      req,
	}

	jsonData, _ := json.Marshal(data)
	hash := sha256.Sum256(jsonData)
	return hex.EncodeToString(hash[:])
}

// normalize trims surrounding whitespace so whitespace-only fields count
// as blank during validation.
func normalize(req *BookingRequest) {
	req.OccurrenceChoice = strings.TrimSpace(req.OccurrenceChoice)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	req.OrganizationName = strings.TrimSpace(req.OrganizationName)
	req.TaxID = strings.TrimSpace(req.TaxID)
}
