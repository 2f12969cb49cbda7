package api

import (
	"github.com/labstack/echo/v4"

	"kursbot/internal/models"
)

// decisionRequest is the body of confirm/reject/reset calls. ActorID is
// the admin (or, for referral payments, the beneficiary) making the call.
type decisionRequest struct {
	ActorID uint   `json:"actor_id"`
	Reason  string `json:"reason"`
}

// ListPayments handles GET /api/payments?status=&page=&limit=.
func (h *Handler) ListPayments(c echo.Context) error {
	status := c.QueryParam("status")
	if status == "" {
		status = models.PaymentStatusPending
	}
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 50)

	payments, total, err := h.repos.Payment.FindByStatus(status, limit, page)
	if err != nil {
		return errorResponse(c, "failed to load payments")
	}
	return successResponse(c, "payments", paginatedResponse(payments, total, page, limit))
}

// ConfirmPayment handles POST /api/payments/:id/confirm.
func (h *Handler) ConfirmPayment(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return errorResponse(c, "invalid payment id")
	}
	var req decisionRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, "invalid request body")
	}

	res, err := h.flow.ConfirmCoursePayment(id, req.ActorID)
	if err != nil {
		return errorResponse(c, "confirmation failed")
	}
	return renderResult(c, res)
}

// RejectPayment handles POST /api/payments/:id/reject.
func (h *Handler) RejectPayment(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return errorResponse(c, "invalid payment id")
	}
	var req decisionRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, "invalid request body")
	}

	res, err := h.flow.RejectCoursePayment(id, req.ActorID, req.Reason)
	if err != nil {
		return errorResponse(c, "rejection failed")
	}
	return renderResult(c, res)
}

// ResetPayment handles POST /api/payments/:id/reset.
func (h *Handler) ResetPayment(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return errorResponse(c, "invalid payment id")
	}
	var req decisionRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, "invalid request body")
	}

	res, err := h.flow.ResetCoursePayment(id, req.ActorID)
	if err != nil {
		return errorResponse(c, "reset failed")
	}
	return renderResult(c, res)
}

// ListReferralPayments handles GET /api/referral-payments.
func (h *Handler) ListReferralPayments(c echo.Context) error {
	status := c.QueryParam("status")
	if status == "" {
		status = models.PaymentStatusPending
	}
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 50)

	payments, total, err := h.repos.RefPayment.FindByStatus(status, limit, page)
	if err != nil {
		return errorResponse(c, "failed to load referral payments")
	}
	return successResponse(c, "referral payments", paginatedResponse(payments, total, page, limit))
}

// ConfirmReferralPayment handles POST /api/referral-payments/:id/confirm.
func (h *Handler) ConfirmReferralPayment(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return errorResponse(c, "invalid payment id")
	}
	var req decisionRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, "invalid request body")
	}

	res, err := h.flow.ConfirmReferralPayment(id, req.ActorID)
	if err != nil {
		return errorResponse(c, "confirmation failed")
	}
	return renderResult(c, res)
}

// RejectReferralPayment handles POST /api/referral-payments/:id/reject.
func (h *Handler) RejectReferralPayment(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return errorResponse(c, "invalid payment id")
	}
	var req decisionRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, "invalid request body")
	}

	res, err := h.flow.RejectReferralPayment(id, req.ActorID, req.Reason)
	if err != nil {
		return errorResponse(c, "rejection failed")
	}
	return renderResult(c, res)
}

// ResetReferralPayment handles POST /api/referral-payments/:id/reset.
func (h *Handler) ResetReferralPayment(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return errorResponse(c, "invalid payment id")
	}
	var req decisionRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, "invalid request body")
	}

	res, err := h.flow.ResetReferralPayment(id, req.ActorID)
	if err != nil {
		return errorResponse(c, "reset failed")
	}
	return renderResult(c, res)
}
