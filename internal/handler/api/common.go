// Package api implements the REST surface used by the admin panel:
// payment review, referral-graph inspection and repair, and user
// management.
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"kursbot/internal/models"
	"kursbot/internal/referral"
	"kursbot/internal/repository"
	"kursbot/internal/workflow"
)

func successResponse(c echo.Context, msg string, obj interface{}) error {
	return c.JSON(http.StatusOK, models.APIResponse{
		Status: true,
		Msg:    msg,
		Obj:    obj,
	})
}

func errorResponse(c echo.Context, msg string) error {
	return c.JSON(http.StatusOK, models.APIResponse{
		Status: false,
		Msg:    msg,
		Obj:    nil,
	})
}

func paginatedResponse(data interface{}, total int64, page, limit int) models.PaginatedResponse {
	return models.PaginatedResponse{
		Data:       data,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages(total, limit),
	}
}

func totalPages(total int64, limit int) int {
	if limit <= 0 {
		limit = 50
	}
	pages := int(total) / limit
	if int(total)%limit != 0 {
		pages++
	}
	if pages == 0 {
		pages = 1
	}
	return pages
}

func paramID(c echo.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

func queryInt(c echo.Context, name string, defaultVal int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultVal
	}
	return v
}

// renderResult maps a workflow result onto the API envelope.
func renderResult(c echo.Context, res *workflow.Result) error {
	if res.OK {
		return successResponse(c, res.Message, res)
	}
	return c.JSON(http.StatusOK, models.APIResponse{
		Status: false,
		Msg:    res.Message,
		Obj:    res,
	})
}

// Repos bundles all repositories needed by API handlers.
type Repos struct {
	User       *repository.UserRepository
	Course     *repository.CourseRepository
	Channel    *repository.ChannelRepository
	Payment    *repository.PaymentRepository
	RefPayment *repository.ReferralPaymentRepository
	Ticket     *repository.TicketRepository
}

// Handler carries the shared dependencies of every API endpoint.
type Handler struct {
	repos  *Repos
	flow   *workflow.Service
	engine *referral.Engine
}

func NewHandler(repos *Repos, flow *workflow.Service, engine *referral.Engine) *Handler {
	return &Handler{repos: repos, flow: flow, engine: engine}
}
