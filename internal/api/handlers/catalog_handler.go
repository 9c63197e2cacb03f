package handlers

import (
	"net/http"

	serviceInterfaces "corsi-booking/internal/interfaces/service"
	"corsi-booking/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CatalogHandler serves the course catalog read endpoints
type CatalogHandler struct {
	bookingService serviceInterfaces.BookingService
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(bookingService serviceInterfaces.BookingService) *CatalogHandler {
	return &CatalogHandler{
		bookingService: bookingService,
	}
}

// GetCourse handles GET /api/v1/courses/:course_id
func (h *CatalogHandler) GetCourse(c *gin.Context) {
	courseID, ok := h.parseCourseID(c)
	if !ok {
		return
	}

	course, err := h.bookingService.GetCourse(c.Request.Context(), courseID)
	if err != nil {
		logger.Error("Failed to retrieve course %s: %v", courseID, err)
		c.JSON(http.StatusInternalServerError, APIResponse{
			Success: false,
			Message: "Failed to retrieve course",
		})
		return
	}

	if course == nil {
		c.JSON(http.StatusNotFound, APIResponse{
			Success: false,
			Message: "Course not found",
		})
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    course,
	})
}

// GetCourseOccupancy handles GET /api/v1/courses/:course_id/occupancy
func (h *CatalogHandler) GetCourseOccupancy(c *gin.Context) {
	courseID, ok := h.parseCourseID(c)
	if !ok {
		return
	}

	rows, err := h.bookingService.GetCourseOccupancy(c.Request.Context(), courseID)
	if err != nil {
		logger.Error("Failed to retrieve occupancy for course %s: %v", courseID, err)
		c.JSON(http.StatusInternalServerError, APIResponse{
			Success: false,
			Message: "Failed to retrieve course occupancy",
		})
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    map[string]interface{}{"occurrences": rows},
	})
}

func (h *CatalogHandler) parseCourseID(c *gin.Context) (uuid.UUID, bool) {
	courseID, err := uuid.Parse(c.Param("course_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Message: "Invalid course ID format",
		})
		return uuid.Nil, false
	}
	return courseID, true
}
