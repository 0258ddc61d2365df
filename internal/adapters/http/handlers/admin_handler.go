package handlers

import (
	"proaluno-library/internal/core/services"
	"proaluno-library/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AdminHandler handles policy administration and manual sweep runs
type AdminHandler struct {
	policyService *services.PolicyService
	overdue       *services.OverdueService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(policyService *services.PolicyService, overdue *services.OverdueService) *AdminHandler {
	return &AdminHandler{
		policyService: policyService,
		overdue:       overdue,
	}
}

// GetPolicy handles reading the circulation policy
// @Summary Get circulation policy
// @Description Get the current circulation policy parameters (Admin only)
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /admin/policy [get]
func (h *AdminHandler) GetPolicy(c *fiber.Ctx) error {
	policy, err := h.policyService.Get(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to get policy")
	}

	return response.Success(c, "Policy retrieved successfully", fiber.Map{
		"policy": policy,
	})
}

// UpdatePolicy handles updating the circulation policy
// @Summary Update circulation policy
// @Description Apply a partial update to the circulation policy (Admin only)
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.UpdatePolicyInput true "Policy fields to change"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /admin/policy [put]
func (h *AdminHandler) UpdatePolicy(c *fiber.Ctx) error {
	var input services.UpdatePolicyInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	policy, err := h.policyService.Update(c.Context(), &input)
	if err != nil {
		return circulationError(c, err, "Failed to update policy")
	}

	return response.Success(c, "Policy updated successfully", fiber.Map{
		"policy": policy,
	})
}

// RunOverdueSweep handles triggering the overdue sweep manually
// @Summary Run overdue sweep
// @Description Run the overdue sweep now instead of waiting for the schedule (Admin only)
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /admin/overdue-sweep [post]
func (h *AdminHandler) RunOverdueSweep(c *fiber.Ctx) error {
	report, err := h.overdue.Run(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to run overdue sweep")
	}

	return response.Success(c, "Overdue sweep completed", report)
}
