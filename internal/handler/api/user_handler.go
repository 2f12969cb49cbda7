package api

import (
	"time"

	"github.com/labstack/echo/v4"
)

// ListUsers handles GET /api/users?query=&page=&limit=.
func (h *Handler) ListUsers(c echo.Context) error {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 50)
	query := c.QueryParam("query")

	users, total, err := h.repos.User.FindAll(limit, page, query)
	if err != nil {
		return errorResponse(c, "failed to load users")
	}
	return successResponse(c, "users", paginatedResponse(users, total, page, limit))
}

// GetUser handles GET /api/users/:id.
func (h *Handler) GetUser(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return errorResponse(c, "invalid user id")
	}
	user, err := h.repos.User.FindByID(id)
	if err != nil {
		return errorResponse(c, "user not found")
	}
	return successResponse(c, "user", user)
}

// CheckConsistency handles POST /api/users/:id/check-consistency.
func (h *Handler) CheckConsistency(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return errorResponse(c, "invalid user id")
	}
	result, err := h.engine.CheckConsistency(id)
	if err != nil {
		return errorResponse(c, "consistency check failed")
	}
	return successResponse(c, "consistency", result)
}

// ListCandidates handles GET /api/users/:id/referrer-candidates?limit=.
func (h *Handler) ListCandidates(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return errorResponse(c, "invalid user id")
	}
	limit := queryInt(c, "limit", 10)

	candidates, err := h.engine.FindSuitableReferrers(id, limit)
	if err != nil {
		return errorResponse(c, "candidate lookup failed")
	}
	return successResponse(c, "candidates", candidates)
}

type replaceRequest struct {
	NewReferrerID uint `json:"new_referrer_id"`
	ActorID       uint `json:"actor_id"`
}

// ReplaceReferrer handles POST /api/users/:id/replace-referrer.
func (h *Handler) ReplaceReferrer(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return errorResponse(c, "invalid user id")
	}
	var req replaceRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, "invalid request body")
	}

	res, err := h.engine.ReplaceReferrer(id, req.NewReferrerID, req.ActorID)
	if err != nil {
		return errorResponse(c, "replacement failed")
	}
	if !res.OK {
		return errorResponse(c, res.Message)
	}
	return successResponse(c, res.Message, res)
}

// RunSweep handles POST /api/referrals/sweep: one on-demand pass over due
// grace tickets, same as the scheduled job.
func (h *Handler) RunSweep(c echo.Context) error {
	report, err := h.engine.Sweep(time.Now())
	if err != nil {
		return errorResponse(c, "sweep failed")
	}
	return successResponse(c, "sweep completed", report)
}

// RecountReferrals handles POST /api/referrals/recount.
func (h *Handler) RecountReferrals(c echo.Context) error {
	fixed, err := h.engine.RecountAllReferralCounts()
	if err != nil {
		return errorResponse(c, "recount failed")
	}
	return successResponse(c, "recount completed", map[string]int{"fixed": fixed})
}
