package api

import (
	"github.com/labstack/echo/v4"

	"kursbot/internal/models"
)

// ListCourses handles GET /api/courses.
func (h *Handler) ListCourses(c echo.Context) error {
	courses, err := h.repos.Course.FindActive()
	if err != nil {
		return errorResponse(c, "failed to load courses")
	}
	return successResponse(c, "courses", courses)
}

type createCourseRequest struct {
	Name             string `json:"name"`
	Price            int    `json:"price"`
	Description      string `json:"description"`
	Level            string `json:"level"`
	PrivateChannelID string `json:"private_channel_id"`
}

// CreateCourse handles POST /api/courses.
func (h *Handler) CreateCourse(c echo.Context) error {
	var req createCourseRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, "invalid request body")
	}
	if req.Name == "" || req.Level == "" {
		return errorResponse(c, "name and level are required")
	}

	course := &models.Course{
		Name:             req.Name,
		Price:            req.Price,
		Description:      req.Description,
		Level:            req.Level,
		IsActive:         true,
		PrivateChannelID: req.PrivateChannelID,
	}
	if err := h.repos.Course.Create(course); err != nil {
		return errorResponse(c, "failed to create course")
	}
	return successResponse(c, "course created", course)
}

// ListTickets handles GET /api/tickets?status=: open grace-window tickets
// for the consistency dashboard.
func (h *Handler) ListTickets(c echo.Context) error {
	tickets, err := h.repos.Ticket.FindOpen()
	if err != nil {
		return errorResponse(c, "failed to load tickets")
	}
	return successResponse(c, "tickets", tickets)
}
