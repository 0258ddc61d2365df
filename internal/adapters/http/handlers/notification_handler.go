package handlers

import (
	"strconv"

	"proaluno-library/internal/core/services"
	"proaluno-library/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// NotificationHandler handles the notification feed and nudges
type NotificationHandler struct {
	notifications *services.NotificationService
	nudges        *services.NudgeService
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notifications *services.NotificationService, nudges *services.NudgeService) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		nudges:        nudges,
	}
}

// ListMine handles listing the requester's notifications
// @Summary List own notifications
// @Description Get the requester's notifications, newest first
// @Tags Notifications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /notifications [get]
func (h *NotificationHandler) ListMine(c *fiber.Ctx) error {
	userID, _ := c.Locals("userID").(uint)

	notifications, err := h.notifications.ListMine(c.Context(), userID)
	if err != nil {
		return response.InternalServerError(c, "Failed to list notifications")
	}

	return response.Success(c, "Notifications retrieved successfully", fiber.Map{
		"notifications": notifications,
		"total":         len(notifications),
	})
}

// MarkRead handles marking a notification as read
// @Summary Mark notification as read
// @Description Mark one of the requester's notifications as read
// @Tags Notifications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Notification ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /notifications/{id}/read [put]
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid notification ID")
	}

	userID, _ := c.Locals("userID").(uint)

	if err := h.notifications.MarkRead(c.Context(), uint(id), userID); err != nil {
		return circulationError(c, err, "Failed to mark notification as read")
	}

	return response.Success(c, "Notification marked as read", nil)
}

// NudgeRequest represents a nudge request body. Exactly one of LoanID
// or BookID identifies the target.
type NudgeRequest struct {
	LoanID uint `json:"loan_id"`
	BookID uint `json:"book_id"`
}

// Nudge handles registering interest in a borrowed book
// @Summary Nudge a borrower
// @Description Signal that someone is waiting for a borrowed book. Extended loans may get their due date shortened.
// @Tags Notifications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body NudgeRequest true "Nudge target"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /nudges [post]
func (h *NotificationHandler) Nudge(c *fiber.Ctx) error {
	var req NudgeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.LoanID == 0 && req.BookID == 0 {
		return response.BadRequest(c, "Loan ID or book ID is required")
	}

	var result *services.NudgeResult
	var err error
	if req.LoanID != 0 {
		result, err = h.nudges.NudgeLoan(c.Context(), req.LoanID)
	} else {
		result, err = h.nudges.NudgeBook(c.Context(), req.BookID)
	}
	if err != nil {
		return circulationError(c, err, "Failed to register nudge")
	}

	return response.Success(c, "Nudge registered", result)
}
