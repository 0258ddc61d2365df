package handlers

import (
	"strconv"
	"strings"

	"proaluno-library/internal/adapters/persistence/models"
	"proaluno-library/internal/core/domain"
	"proaluno-library/internal/core/services"
	"proaluno-library/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// LoanHandler handles circulation endpoints
type LoanHandler struct {
	circulation *services.CirculationService
}

// NewLoanHandler creates a new loan handler
func NewLoanHandler(circulation *services.CirculationService) *LoanHandler {
	return &LoanHandler{circulation: circulation}
}

// circulationError maps domain errors to HTTP responses. Policy
// violations come back as 422 so clients can show the reason as-is.
func circulationError(c *fiber.Ctx, err error, fallback string) error {
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		return response.NotFound(c, err.Error())
	case domain.KindUnauthorized:
		return response.Forbidden(c, err.Error())
	case domain.KindPolicyViolation:
		return response.UnprocessableEntity(c, err.Error())
	case domain.KindInvalidInput:
		return response.BadRequest(c, err.Error())
	default:
		return response.InternalServerError(c, fallback)
	}
}

func requester(c *fiber.Ctx) (uint, bool) {
	userID, _ := c.Locals("userID").(uint)
	role, _ := c.Locals("role").(string)
	return userID, role == string(domain.RoleAdmin)
}

func (h *LoanHandler) toResponses(loans []models.Loan) []*models.LoanResponse {
	now := h.circulation.Now()
	out := make([]*models.LoanResponse, len(loans))
	for i := range loans {
		out[i] = loans[i].ToResponse(now)
	}
	return out
}

// BorrowRequest represents borrow request body. NUSP is accepted only
// from admins borrowing on a patron's behalf.
type BorrowRequest struct {
	BookID uint   `json:"book_id"`
	NUSP   string `json:"nusp"`
}

// Borrow handles checking out a book
// @Summary Borrow a book
// @Description Check out a book for the authenticated user, or for a patron by NUSP (Admin only)
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body BorrowRequest true "Borrow data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /loans [post]
func (h *LoanHandler) Borrow(c *fiber.Ctx) error {
	var req BorrowRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.BookID == 0 {
		return response.BadRequest(c, "Book ID is required")
	}

	userID, isAdmin := requester(c)

	var loan *models.Loan
	var err error
	if req.NUSP != "" {
		// Counter checkout on a patron's behalf
		if !isAdmin {
			return response.Forbidden(c, "Only staff can borrow on behalf of a patron")
		}
		loan, err = h.circulation.BorrowAsAdmin(c.Context(), strings.TrimSpace(req.NUSP), req.BookID)
	} else {
		loan, err = h.circulation.Borrow(c.Context(), userID, req.BookID)
	}
	if err != nil {
		return circulationError(c, err, "Failed to borrow book")
	}

	return response.Created(c, "Loan created successfully", fiber.Map{
		"loan": loan.ToResponse(h.circulation.Now()),
	})
}

// InternalUseRequest represents internal use registration body
type InternalUseRequest struct {
	BookID uint `json:"book_id"`
}

// RegisterInternalUse handles recording in-library consultation (Admin only)
// @Summary Register internal use
// @Description Record an in-library consultation of a book without blocking it
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body InternalUseRequest true "Internal use data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/internal-use [post]
func (h *LoanHandler) RegisterInternalUse(c *fiber.Ctx) error {
	var req InternalUseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.BookID == 0 {
		return response.BadRequest(c, "Book ID is required")
	}

	userID, _ := requester(c)

	loan, err := h.circulation.RegisterInternalUse(c.Context(), req.BookID, userID)
	if err != nil {
		return circulationError(c, err, "Failed to register internal use")
	}

	return response.Created(c, "Internal use registered", fiber.Map{
		"loan": loan.ToResponse(h.circulation.Now()),
	})
}

// Return handles returning a loan
// @Summary Return a loan
// @Description Close a loan. Returning an already-closed loan succeeds and reports it.
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/{id}/return [post]
func (h *LoanHandler) Return(c *fiber.Ctx) error {
	loanID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid loan ID")
	}

	userID, isAdmin := requester(c)

	result, err := h.circulation.Return(c.Context(), uint(loanID), userID, isAdmin)
	if err != nil {
		return circulationError(c, err, "Failed to return loan")
	}

	message := "Loan returned successfully"
	if result.AlreadyReturned {
		message = "Loan was already returned"
	}
	return response.Success(c, message, fiber.Map{
		"loan":             result.Loan.ToResponse(h.circulation.Now()),
		"already_returned": result.AlreadyReturned,
	})
}

// ReturnByBookRequest represents counter return body
type ReturnByBookRequest struct {
	BookID uint `json:"book_id"`
}

// ReturnByBook handles returning the active loan of a book (Admin only)
// @Summary Return by book
// @Description Close the active loan of a book when only the copy is in hand
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body ReturnByBookRequest true "Return data"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/return-by-book [post]
func (h *LoanHandler) ReturnByBook(c *fiber.Ctx) error {
	var req ReturnByBookRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.BookID == 0 {
		return response.BadRequest(c, "Book ID is required")
	}

	userID, isAdmin := requester(c)

	result, err := h.circulation.ReturnByBook(c.Context(), req.BookID, userID, isAdmin)
	if err != nil {
		return circulationError(c, err, "Failed to return book")
	}

	message := "Loan returned successfully"
	if result.AlreadyReturned {
		message = "Loan was already returned"
	}
	return response.Success(c, message, fiber.Map{
		"loan":             result.Loan.ToResponse(h.circulation.Now()),
		"already_returned": result.AlreadyReturned,
	})
}

// Renew handles renewing a loan
// @Summary Renew a loan
// @Description Push the due date forward from the current due date
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /loans/{id}/renew [post]
func (h *LoanHandler) Renew(c *fiber.Ctx) error {
	loanID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid loan ID")
	}

	userID, isAdmin := requester(c)

	loan, err := h.circulation.Renew(c.Context(), uint(loanID), userID, isAdmin)
	if err != nil {
		return circulationError(c, err, "Failed to renew loan")
	}

	return response.Success(c, "Loan renewed successfully", fiber.Map{
		"loan": loan.ToResponse(h.circulation.Now()),
	})
}

// PreviewRenew handles checking renewal eligibility
// @Summary Preview a renewal
// @Description Report renewal eligibility and the would-be due date without renewing
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/{id}/renew/preview [get]
func (h *LoanHandler) PreviewRenew(c *fiber.Ctx) error {
	loanID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid loan ID")
	}

	userID, isAdmin := requester(c)

	preview, err := h.circulation.PreviewRenew(c.Context(), uint(loanID), userID, isAdmin)
	if err != nil {
		return circulationError(c, err, "Failed to preview renewal")
	}

	return response.Success(c, "Renewal preview", preview)
}

// RequestExtension handles the one-time block extension
// @Summary Request loan extension
// @Description Grant the one-time extension after all renewals are used
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /loans/{id}/extend [post]
func (h *LoanHandler) RequestExtension(c *fiber.Ctx) error {
	loanID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid loan ID")
	}

	userID, isAdmin := requester(c)

	loan, err := h.circulation.RequestExtension(c.Context(), uint(loanID), userID, isAdmin)
	if err != nil {
		return circulationError(c, err, "Failed to extend loan")
	}

	return response.Success(c, "Loan extended successfully", fiber.Map{
		"loan": loan.ToResponse(h.circulation.Now()),
	})
}

// PreviewExtension handles checking extension eligibility
// @Summary Preview an extension
// @Description Report extension eligibility and the would-be due date without extending
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/{id}/extend/preview [get]
func (h *LoanHandler) PreviewExtension(c *fiber.Ctx) error {
	loanID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid loan ID")
	}

	userID, isAdmin := requester(c)

	preview, err := h.circulation.PreviewExtension(c.Context(), uint(loanID), userID, isAdmin)
	if err != nil {
		return circulationError(c, err, "Failed to preview extension")
	}

	return response.Success(c, "Extension preview", preview)
}

// GetLoan handles getting a single loan
// @Summary Get loan by ID
// @Description Get a loan visible to the requester
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/{id} [get]
func (h *LoanHandler) GetLoan(c *fiber.Ctx) error {
	loanID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid loan ID")
	}

	userID, isAdmin := requester(c)

	loan, err := h.circulation.GetLoan(c.Context(), uint(loanID), userID, isAdmin)
	if err != nil {
		return circulationError(c, err, "Failed to get loan")
	}

	return response.Success(c, "Loan retrieved successfully", fiber.Map{
		"loan": loan.ToResponse(h.circulation.Now()),
	})
}

// ListLoans handles listing loans (Admin only)
// @Summary List loans
// @Description List loans, filterable by status (all, active, overdue)
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter: all, active or overdue" default(all)
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /loans [get]
func (h *LoanHandler) ListLoans(c *fiber.Ctx) error {
	var loans []models.Loan
	var err error

	switch c.Query("status", "all") {
	case "active":
		loans, err = h.circulation.ListActive(c.Context())
	case "overdue":
		loans, err = h.circulation.ListOverdue(c.Context())
	default:
		loans, err = h.circulation.ListAll(c.Context())
	}
	if err != nil {
		return response.InternalServerError(c, "Failed to list loans")
	}

	return response.Success(c, "Loans retrieved successfully", fiber.Map{
		"loans": h.toResponses(loans),
		"total": len(loans),
	})
}

// ListMyLoans handles listing the requester's loans
// @Summary List own loans
// @Description List the requester's loans, optionally only the active ones
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter: all or active" default(all)
// @Success 200 {object} response.Response
// @Router /loans/me [get]
func (h *LoanHandler) ListMyLoans(c *fiber.Ctx) error {
	userID, _ := requester(c)

	var loans []models.Loan
	var err error
	if c.Query("status", "all") == "active" {
		loans, err = h.circulation.ListActiveByUser(c.Context(), userID)
	} else {
		loans, err = h.circulation.ListByUser(c.Context(), userID)
	}
	if err != nil {
		return response.InternalServerError(c, "Failed to list loans")
	}

	return response.Success(c, "Loans retrieved successfully", fiber.Map{
		"loans": h.toResponses(loans),
		"total": len(loans),
	})
}
