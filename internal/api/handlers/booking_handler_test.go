package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	booking "corsi-booking/internal/domain/booking"
	"corsi-booking/internal/infrastructure/cache"
	"corsi-booking/internal/infrastructure/repository"
	interfaces "corsi-booking/internal/interfaces/infrastructure"
	"corsi-booking/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// noopQueue satisfies QueueService without dispatching anything.
type noopQueue struct{}

func (noopQueue) EnqueueNotification(context.Context, interfaces.NotificationJob) error { return nil }
func (noopQueue) DequeueNotification(context.Context) (*interfaces.NotificationJob, error) {
	return nil, nil
}
func (noopQueue) SetDispatcher(interface{}) {}
func (noopQueue) StartWorkers()             {}
func (noopQueue) StopWorkers()              {}

func newTestRouter(t *testing.T) (*gin.Engine, *cache.MemoryCache, uuid.UUID) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	courseRepo := repository.NewMockCourseRepository()
	reservationRepo := repository.NewMockReservationRepository()
	memCache := cache.NewMemoryCache()

	course := &booking.Course{
		CourseID:  uuid.New(),
		Title:     "First Aid 101",
		Audience:  booking.AudiencePopulation,
		Published: true,
		Occurrences: []booking.Occurrence{
			{Index: 0, Date: time.Now().Add(48 * time.Hour), Duration: "4 hours", Capacity: 5},
		},
	}
	if err := courseRepo.Create(context.Background(), course); err != nil {
		t.Fatalf("Failed to create course: %v", err)
	}

	bookingService := service.NewBookingService(
		courseRepo, reservationRepo, nil, memCache,
		nil, noopQueue{}, nil, nil,
		"https://courses.example.com/thanks", time.Hour,
	)

	handler := NewBookingHandler(bookingService, memCache, 10*time.Minute)

	r := gin.New()
	r.GET("/api/v1/bookings/token", handler.IssueToken)
	r.POST("/api/v1/bookings", handler.SubmitBooking)
	return r, memCache, course.CourseID
}

func issueToken(t *testing.T, r *gin.Engine) string {
	t.Helper()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/token", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 issuing token, got %d", w.Code)
	}

	var body struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode token response: %v", err)
	}
	return body.Data.Token
}

func submitBooking(t *testing.T, r *gin.Engine, payload map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()

	jsonData, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal payload: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", bytes.NewBuffer(jsonData))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func validPayload(courseID uuid.UUID, token string) map[string]interface{} {
	return map[string]interface{}{
		"course_id":         courseID.String(),
		"occurrence_choice": "0",
		"first_name":        "Mario",
		"last_name":         "Rossi",
		"email":             "mario.rossi@example.com",
		"booking_token":     token,
	}
}

func TestBookingHandler_SubmitBooking_WithValidToken(t *testing.T) {
	r, _, courseID := newTestRouter(t)

	token := issueToken(t, r)
	w := submitBooking(t, r, validPayload(courseID, token))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestBookingHandler_SubmitBooking_MissingToken(t *testing.T) {
	r, _, courseID := newTestRouter(t)

	payload := validPayload(courseID, "")
	delete(payload, "booking_token")
	w := submitBooking(t, r, payload)

	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 without token, got %d", w.Code)
	}
}

func TestBookingHandler_SubmitBooking_TokenSingleUse(t *testing.T) {
	r, _, courseID := newTestRouter(t)

	token := issueToken(t, r)
	first := submitBooking(t, r, validPayload(courseID, token))
	if first.Code != http.StatusOK {
		t.Fatalf("Expected first submission to pass, got %d", first.Code)
	}

	second := submitBooking(t, r, validPayload(courseID, token))
	if second.Code != http.StatusForbidden {
		t.Errorf("Expected reused token to be rejected with 403, got %d", second.Code)
	}
}

func TestBookingHandler_SubmitBooking_TokenCheckedBeforeValidation(t *testing.T) {
	r, _, courseID := newTestRouter(t)

	// Invalid fields with a forged token: the security failure wins.
	payload := validPayload(courseID, "forged-token")
	payload["email"] = ""
	w := submitBooking(t, r, payload)

	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for forged token regardless of field errors, got %d", w.Code)
	}
}

func TestBookingHandler_SubmitBooking_ValidationErrorsReturned(t *testing.T) {
	r, _, courseID := newTestRouter(t)

	token := issueToken(t, r)
	payload := validPayload(courseID, token)
	payload["email"] = ""
	payload["last_name"] = ""
	w := submitBooking(t, r, payload)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}

	var body struct {
		Code   string   `json:"code"`
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.Code != string(booking.ErrCodeValidation) {
		t.Errorf("Expected validation_failed, got %s", body.Code)
	}
	if len(body.Errors) != 2 {
		t.Errorf("Expected both field errors reported, got %v", body.Errors)
	}
}

func TestBookingHandler_SubmitBooking_SoldOutConflict(t *testing.T) {
	r, _, courseID := newTestRouter(t)

	for i := 0; i < 5; i++ {
		token := issueToken(t, r)
		w := submitBooking(t, r, validPayload(courseID, token))
		if w.Code != http.StatusOK {
			t.Fatalf("Booking %d should pass, got %d", i+1, w.Code)
		}
	}

	token := issueToken(t, r)
	w := submitBooking(t, r, validPayload(courseID, token))
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 when sold out, got %d", w.Code)
	}
}
