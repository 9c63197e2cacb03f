package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	booking "corsi-booking/internal/domain/booking"
	"corsi-booking/internal/infrastructure/cache"
	"corsi-booking/internal/infrastructure/repository"
	interfaces "corsi-booking/internal/interfaces/infrastructure"

	"github.com/google/uuid"
)

// fakeQueue records enqueued notification jobs.
type fakeQueue struct {
	mu   sync.Mutex
	jobs []interfaces.NotificationJob
}

func (q *fakeQueue) EnqueueNotification(_ context.Context, job interfaces.NotificationJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) DequeueNotification(_ context.Context) (*interfaces.NotificationJob, error) {
	return nil, nil
}

func (q *fakeQueue) SetDispatcher(interface{}) {}
func (q *fakeQueue) StartWorkers()             {}
func (q *fakeQueue) StopWorkers()              {}

func (q *fakeQueue) jobCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// fakeStaging records cart operations for the paid booking flow.
type fakeStaging struct {
	mu        sync.Mutex
	available bool
	cleared   []string
	staged    map[string][]interfaces.PaymentLine
	url       string
}

func newFakeStaging(available bool) *fakeStaging {
	return &fakeStaging{
		available: available,
		staged:    make(map[string][]interfaces.PaymentLine),
		url:       "https://pay.example.com/checkout",
	}
}

func (s *fakeStaging) Available() bool { return s.available }

func (s *fakeStaging) ClearPending(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared = append(s.cleared, sessionID)
	s.staged[sessionID] = nil
	return nil
}

func (s *fakeStaging) StageLine(_ context.Context, sessionID string, line interfaces.PaymentLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged[sessionID] = append(s.staged[sessionID], line)
	return nil
}

func (s *fakeStaging) CheckoutURL() string { return s.url }

// fakeGateway counts notification deliveries.
type fakeGateway struct {
	mu            sync.Mutex
	adminCalls    int
	attendeeCalls int
}

func (g *fakeGateway) NotifyAdmin(_ context.Context, _ *booking.Reservation, _ *booking.Course, _ *booking.Occurrence) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.adminCalls++
	return nil
}

func (g *fakeGateway) NotifyAttendee(_ context.Context, _ *booking.Reservation, _ *booking.Course, _ *booking.Occurrence) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.attendeeCalls++
	return nil
}

// fakeIdempotencyRepo is a map-backed IdempotencyRepository.
type fakeIdempotencyRepo struct {
	mu   sync.Mutex
	keys map[string]*booking.IdempotencyKey
}

func newFakeIdempotencyRepo() *fakeIdempotencyRepo {
	return &fakeIdempotencyRepo{keys: make(map[string]*booking.IdempotencyKey)}
}

func (r *fakeIdempotencyRepo) Create(_ context.Context, key *booking.IdempotencyKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *key
	r.keys[key.Key] = &copied
	return nil
}

func (r *fakeIdempotencyRepo) GetByKey(_ context.Context, key string) (*booking.IdempotencyKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.keys[key]
	if !ok {
		return nil, interfaces.ErrIdempotencyKeyNotFound
	}
	copied := *record
	return &copied, nil
}

func (r *fakeIdempotencyRepo) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.keys, key)
	return nil
}

type bookingFixture struct {
	service         *BookingService
	courseRepo      *repository.MockCourseRepository
	reservationRepo *repository.MockReservationRepository
	cache           *cache.MemoryCache
	queue           *fakeQueue
	staging         *fakeStaging
	gateway         *fakeGateway
	idempotency     *fakeIdempotencyRepo
}

func newBookingFixture(t *testing.T, paymentAvailable bool) *bookingFixture {
	t.Helper()

	f := &bookingFixture{
		courseRepo:      repository.NewMockCourseRepository(),
		reservationRepo: repository.NewMockReservationRepository(),
		cache:           cache.NewMemoryCache(),
		queue:           &fakeQueue{},
		staging:         newFakeStaging(paymentAvailable),
		gateway:         &fakeGateway{},
		idempotency:     newFakeIdempotencyRepo(),
	}

	f.service = NewBookingService(
		f.courseRepo,
		f.reservationRepo,
		nil,
		f.cache,
		f.staging,
		f.queue,
		f.idempotency,
		f.gateway,
		"https://courses.example.com/thanks",
		time.Hour,
	)
	return f
}

func (f *bookingFixture) addCourse(t *testing.T, course *booking.Course) *booking.Course {
	t.Helper()
	if err := f.courseRepo.Create(context.Background(), course); err != nil {
		t.Fatalf("Failed to create course: %v", err)
	}
	return course
}

func freeCourse(capacity int) *booking.Course {
	return &booking.Course{
		CourseID:  uuid.New(),
		Title:     "First Aid 101",
		Audience:  booking.AudiencePopulation,
		Published: true,
		Occurrences: []booking.Occurrence{
			{Index: 0, Date: time.Now().Add(7 * 24 * time.Hour), Duration: "4 hours", Capacity: capacity},
		},
	}
}

func validRequest(courseID uuid.UUID) *BookingRequest {
	return &BookingRequest{
		CourseID:         courseID,
		OccurrenceChoice: "0",
		FirstName:        "Mario",
		LastName:         "Rossi",
		Email:            "mario.rossi@example.com",
		Phone:            "3331234567",
	}
}

func TestBookingService_SubmitBooking_FreeCourseConfirmed(t *testing.T) {
	f := newBookingFixture(t, true)
	course := f.addCourse(t, freeCourse(12))

	outcome, err := f.service.SubmitBooking(context.Background(), validRequest(course.CourseID))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if outcome.Status != booking.StatusConfirmed {
		t.Errorf("Expected status %s, got %s", booking.StatusConfirmed, outcome.Status)
	}
	if outcome.PaymentRequired {
		t.Error("Expected no payment for a free course")
	}
	if outcome.RedirectURL != "https://courses.example.com/thanks" {
		t.Errorf("Expected confirmation redirect, got %s", outcome.RedirectURL)
	}

	stored, err := f.reservationRepo.GetByID(context.Background(), outcome.ReservationID)
	if err != nil || stored == nil {
		t.Fatalf("Expected reservation to be persisted, got %v, %v", stored, err)
	}
	if stored.Status != booking.StatusConfirmed {
		t.Errorf("Expected stored status confirmed, got %s", stored.Status)
	}

	if f.queue.jobCount() != 1 {
		t.Errorf("Expected 1 notification job, got %d", f.queue.jobCount())
	}
}

func TestBookingService_SubmitBooking_CapacityBoundary(t *testing.T) {
	f := newBookingFixture(t, true)
	course := f.addCourse(t, freeCourse(3))

	for i := 0; i < 3; i++ {
		req := validRequest(course.CourseID)
		req.Email = fmt.Sprintf("attendee%d@example.com", i)
		if _, err := f.service.SubmitBooking(context.Background(), req); err != nil {
			t.Fatalf("Booking %d should succeed, got %v", i+1, err)
		}
	}

	req := validRequest(course.CourseID)
	req.Email = "late@example.com"
	_, err := f.service.SubmitBooking(context.Background(), req)
	if err == nil {
		t.Fatal("Expected the booking past capacity to be rejected")
	}
	if booking.CodeOf(err) != booking.ErrCodeSoldOut {
		t.Errorf("Expected sold_out, got %s", booking.CodeOf(err))
	}
}

func TestBookingService_SubmitBooking_AggregatesFieldErrors(t *testing.T) {
	f := newBookingFixture(t, true)
	course := f.addCourse(t, freeCourse(10))

	req := validRequest(course.CourseID)
	req.LastName = ""
	req.Email = ""

	_, err := f.service.SubmitBooking(context.Background(), req)
	if err == nil {
		t.Fatal("Expected a validation error")
	}
	if booking.CodeOf(err) != booking.ErrCodeValidation {
		t.Fatalf("Expected validation_failed, got %s", booking.CodeOf(err))
	}

	be := booking.AsError(err)
	if len(be.Fields) != 2 {
		t.Fatalf("Expected both missing fields reported, got %v", be.Fields)
	}
	joined := strings.Join(be.Fields, "; ")
	if !strings.Contains(joined, "last_name") || !strings.Contains(joined, "email") {
		t.Errorf("Expected last_name and email in %q", joined)
	}
}

func TestBookingService_SubmitBooking_WhitespaceOnlyFieldIsMissing(t *testing.T) {
	f := newBookingFixture(t, true)
	course := f.addCourse(t, freeCourse(10))

	req := validRequest(course.CourseID)
	req.FirstName = "   "

	_, err := f.service.SubmitBooking(context.Background(), req)
	if booking.CodeOf(err) != booking.ErrCodeValidation {
		t.Errorf("Expected validation_failed for whitespace-only first name, got %v", err)
	}
}

func TestBookingService_SubmitBooking_BusinessRequiresOrganization(t *testing.T) {
	f := newBookingFixture(t, true)
	course := freeCourse(10)
	course.Audience = booking.AudienceBusiness
	f.addCourse(t, course)

	req := validRequest(course.CourseID)
	_, err := f.service.SubmitBooking(context.Background(), req)
	if booking.CodeOf(err) != booking.ErrCodeValidation {
		t.Fatalf("Expected validation_failed, got %v", err)
	}

	be := booking.AsError(err)
	joined := strings.Join(be.Fields, "; ")
	if !strings.Contains(joined, "organization_name") || !strings.Contains(joined, "tax_id") {
		t.Errorf("Expected organization_name and tax_id in %q", joined)
	}

	req.OrganizationName = "ACME SRL"
	req.TaxID = "IT01234567890"
	outcome, err := f.service.SubmitBooking(context.Background(), req)
	if err != nil {
		t.Fatalf("Expected business booking with organization to succeed, got %v", err)
	}
	stored, _ := f.reservationRepo.GetByID(context.Background(), outcome.ReservationID)
	if !stored.Business() {
		t.Error("Expected a business reservation")
	}
}

func TestBookingService_SubmitBooking_PopulationIgnoresOrganizationFields(t *testing.T) {
	f := newBookingFixture(t, true)
	course := f.addCourse(t, freeCourse(10))

	// Same payload that fails for a business course passes for a
	// population one.
	req := validRequest(course.CourseID)
	if _, err := f.service.SubmitBooking(context.Background(), req); err != nil {
		t.Fatalf("Expected population booking without organization to succeed, got %v", err)
	}
}

func TestBookingService_SubmitBooking_InvalidOccurrence(t *testing.T) {
	f := newBookingFixture(t, true)
	course := f.addCourse(t, freeCourse(10))

	cases := []string{"5", "abc", "-1"}
	for _, choice := range cases {
		req := validRequest(course.CourseID)
		req.OccurrenceChoice = choice
		_, err := f.service.SubmitBooking(context.Background(), req)
		if booking.CodeOf(err) != booking.ErrCodeInvalidOccurrence {
			t.Errorf("Choice %q: expected invalid_occurrence, got %v", choice, err)
		}
	}
}

func TestBookingService_SubmitBooking_MissingOccurrenceChoice(t *testing.T) {
	f := newBookingFixture(t, true)
	course := f.addCourse(t, freeCourse(10))

	req := validRequest(course.CourseID)
	req.OccurrenceChoice = ""
	_, err := f.service.SubmitBooking(context.Background(), req)
	if booking.CodeOf(err) != booking.ErrCodeValidation {
		t.Errorf("Expected validation_failed for missing choice, got %v", err)
	}
}

func TestBookingService_SubmitBooking_UnknownCourse(t *testing.T) {
	f := newBookingFixture(t, true)

	_, err := f.service.SubmitBooking(context.Background(), validRequest(uuid.New()))
	if booking.CodeOf(err) != booking.ErrCodeInvalidOccurrence {
		t.Errorf("Expected invalid_occurrence for unknown course, got %v", err)
	}
}

func TestBookingService_SubmitBooking_UnpublishedCourse(t *testing.T) {
	f := newBookingFixture(t, true)
	course := freeCourse(10)
	course.Published = false
	f.addCourse(t, course)

	_, err := f.service.SubmitBooking(context.Background(), validRequest(course.CourseID))
	if booking.CodeOf(err) != booking.ErrCodeInvalidOccurrence {
		t.Errorf("Expected invalid_occurrence for unpublished course, got %v", err)
	}
}

func TestBookingService_SubmitBooking_ZeroCapacityIsSoldOut(t *testing.T) {
	f := newBookingFixture(t, true)
	course := f.addCourse(t, freeCourse(0))

	_, err := f.service.SubmitBooking(context.Background(), validRequest(course.CourseID))
	if booking.CodeOf(err) != booking.ErrCodeSoldOut {
		t.Errorf("Expected sold_out for zero capacity, got %v", err)
	}
}

func TestBookingService_SubmitBooking_PaidCoursePendingPayment(t *testing.T) {
	f := newBookingFixture(t, true)
	course := freeCourse(10)
	course.LinkedProductID = 42
	f.addCourse(t, course)

	req := validRequest(course.CourseID)
	outcome, err := f.service.SubmitBooking(context.Background(), req)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if outcome.Status != booking.StatusPendingPayment {
		t.Errorf("Expected pending_payment, got %s", outcome.Status)
	}
	if !outcome.PaymentRequired {
		t.Error("Expected payment to be required")
	}
	if outcome.RedirectURL != f.staging.CheckoutURL() {
		t.Errorf("Expected checkout redirect, got %s", outcome.RedirectURL)
	}

	// No notifications before the payment completes.
	if f.queue.jobCount() != 0 {
		t.Errorf("Expected no notification jobs before payment, got %d", f.queue.jobCount())
	}

	lines := f.staging.staged[req.Email]
	if len(lines) != 1 {
		t.Fatalf("Expected exactly one staged line, got %d", len(lines))
	}
	if lines[0].ReservationID != outcome.ReservationID {
		t.Error("Expected the staged line to reference the reservation")
	}
	if len(f.staging.cleared) != 1 || f.staging.cleared[0] != req.Email {
		t.Errorf("Expected pending cart cleared for %s, got %v", req.Email, f.staging.cleared)
	}
}

func TestBookingService_SubmitBooking_PaymentUnavailableBooksAsFree(t *testing.T) {
	f := newBookingFixture(t, false)
	course := freeCourse(10)
	course.LinkedProductID = 42
	f.addCourse(t, course)

	outcome, err := f.service.SubmitBooking(context.Background(), validRequest(course.CourseID))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if outcome.Status != booking.StatusConfirmed {
		t.Errorf("Expected confirmed when payments are unavailable, got %s", outcome.Status)
	}
	if f.queue.jobCount() != 1 {
		t.Errorf("Expected 1 notification job, got %d", f.queue.jobCount())
	}
}

func TestBookingService_SubmitBooking_StorageFailureReleasesSeat(t *testing.T) {
	f := newBookingFixture(t, true)
	course := f.addCourse(t, freeCourse(1))

	f.reservationRepo.FailCreates = true
	_, err := f.service.SubmitBooking(context.Background(), validRequest(course.CourseID))
	if booking.CodeOf(err) != booking.ErrCodeStorage {
		t.Fatalf("Expected storage_error, got %v", err)
	}

	// The failed booking must not keep the claimed seat; the next
	// attempt gets the only seat.
	f.reservationRepo.FailCreates = false
	outcome, err := f.service.SubmitBooking(context.Background(), validRequest(course.CourseID))
	if err != nil {
		t.Fatalf("Expected the retry to get the released seat, got %v", err)
	}
	if outcome.Status != booking.StatusConfirmed {
		t.Errorf("Expected confirmed, got %s", outcome.Status)
	}
}

func TestBookingService_SubmitBooking_ConcurrentLastSeat(t *testing.T) {
	f := newBookingFixture(t, true)
	course := f.addCourse(t, freeCourse(1))

	const attempts = 10
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			req := validRequest(course.CourseID)
			req.Email = fmt.Sprintf("racer%d@example.com", n)
			_, err := f.service.SubmitBooking(context.Background(), req)
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	accepted, soldOut := 0, 0
	for err := range results {
		switch {
		case err == nil:
			accepted++
		case booking.CodeOf(err) == booking.ErrCodeSoldOut:
			soldOut++
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}

	if accepted != 1 {
		t.Errorf("Expected exactly 1 accepted booking for the last seat, got %d", accepted)
	}
	if soldOut != attempts-1 {
		t.Errorf("Expected %d sold_out rejections, got %d", attempts-1, soldOut)
	}
}

func TestBookingService_SubmitBooking_IdempotentReplay(t *testing.T) {
	f := newBookingFixture(t, true)
	course := f.addCourse(t, freeCourse(5))

	req := validRequest(course.CourseID)
	req.IdempotencyKey = "retry-key-1"

	first, err := f.service.SubmitBooking(context.Background(), req)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	replayReq := validRequest(course.CourseID)
	replayReq.IdempotencyKey = "retry-key-1"
	second, err := f.service.SubmitBooking(context.Background(), replayReq)
	if err != nil {
		t.Fatalf("Expected replay to succeed, got %v", err)
	}

	if first.ReservationID != second.ReservationID {
		t.Error("Expected the replay to return the original reservation")
	}

	reservations, _ := f.reservationRepo.GetByOccurrence(context.Background(), course.CourseID, 0)
	if len(reservations) != 1 {
		t.Errorf("Expected a single reservation after replay, got %d", len(reservations))
	}
}

func TestBookingService_DispatchReservationNotifications(t *testing.T) {
	f := newBookingFixture(t, true)
	course := f.addCourse(t, freeCourse(5))

	outcome, err := f.service.SubmitBooking(context.Background(), validRequest(course.CourseID))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if err := f.service.DispatchReservationNotifications(context.Background(), outcome.ReservationID); err != nil {
		t.Fatalf("Expected dispatch to succeed, got %v", err)
	}

	if f.gateway.adminCalls != 1 || f.gateway.attendeeCalls != 1 {
		t.Errorf("Expected one admin and one attendee notification, got %d and %d",
			f.gateway.adminCalls, f.gateway.attendeeCalls)
	}
}

func TestBookingService_DispatchReservationNotifications_UnknownReservation(t *testing.T) {
	f := newBookingFixture(t, true)

	// Unknown reservations are skipped rather than retried forever.
	if err := f.service.DispatchReservationNotifications(context.Background(), uuid.New()); err != nil {
		t.Fatalf("Expected unknown reservation to be skipped, got %v", err)
	}
	if f.gateway.adminCalls != 0 {
		t.Error("Expected no notifications for an unknown reservation")
	}
}

func TestBookingService_GetCourseOccupancy_FallbackCountsStatuses(t *testing.T) {
	f := newBookingFixture(t, true)
	course := freeCourse(10)
	course.LinkedProductID = 42
	f.addCourse(t, course)

	// One pending and one confirmed reservation both occupy seats.
	pending := validRequest(course.CourseID)
	if _, err := f.service.SubmitBooking(context.Background(), pending); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	f.staging.available = false
	confirmed := validRequest(course.CourseID)
	confirmed.Email = "second@example.com"
	if _, err := f.service.SubmitBooking(context.Background(), confirmed); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	rows, err := f.service.GetCourseOccupancy(context.Background(), course.CourseID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Expected 1 occupancy row, got %d", len(rows))
	}
	if rows[0].Occupied != 2 {
		t.Errorf("Expected 2 occupied seats (pending + confirmed), got %d", rows[0].Occupied)
	}
	if rows[0].Free() != 8 {
		t.Errorf("Expected 8 free seats, got %d", rows[0].Free())
	}
}
