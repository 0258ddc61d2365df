package handlers

import (
	"strconv"

	"proaluno-library/internal/core/services"
	"proaluno-library/internal/pkg/pagination"
	"proaluno-library/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// BookHandler handles catalog endpoints
type BookHandler struct {
	catalog *services.CatalogService
}

// NewBookHandler creates a new book handler
func NewBookHandler(catalog *services.CatalogService) *BookHandler {
	return &BookHandler{catalog: catalog}
}

// CreateBook handles registering a book (Admin only)
// @Summary Register a book
// @Description Add a book to the catalog (Admin only)
// @Tags Books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CreateBookInput true "Book data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /books [post]
func (h *BookHandler) CreateBook(c *fiber.Ctx) error {
	var input services.CreateBookInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if input.Title == "" {
		return response.BadRequest(c, "Title is required")
	}

	book, err := h.catalog.Create(c.Context(), &input)
	if err != nil {
		return circulationError(c, err, "Failed to register book")
	}

	return response.Created(c, "Book registered successfully", fiber.Map{
		"book": book,
	})
}

// GetBook handles getting a book with availability
// @Summary Get book by ID
// @Description Get a book together with its circulation status
// @Tags Books
// @Accept json
// @Produce json
// @Param id path int true "Book ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /books/{id} [get]
func (h *BookHandler) GetBook(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid book ID")
	}

	availability, err := h.catalog.GetAvailability(c.Context(), uint(id))
	if err != nil {
		return circulationError(c, err, "Failed to get book")
	}

	return response.Success(c, "Book retrieved successfully", availability)
}

// UpdateBook handles updating a book (Admin only)
// @Summary Update book
// @Description Update a book's data, including its reserved flag (Admin only)
// @Tags Books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Param body body services.UpdateBookInput true "Update data"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /books/{id} [put]
func (h *BookHandler) UpdateBook(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid book ID")
	}

	var input services.UpdateBookInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	book, err := h.catalog.Update(c.Context(), uint(id), &input)
	if err != nil {
		return circulationError(c, err, "Failed to update book")
	}

	return response.Success(c, "Book updated successfully", fiber.Map{
		"book": book,
	})
}

// ListBooks handles listing the catalog
// @Summary List books
// @Description Get a paginated list of the catalog
// @Tags Books
// @Accept json
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(10)
// @Success 200 {object} response.Response
// @Router /books [get]
func (h *BookHandler) ListBooks(c *fiber.Ctx) error {
	params := pagination.GetParams(c)

	result, err := h.catalog.List(c.Context(), params.Page, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list books")
	}

	return response.Success(c, "Books retrieved successfully", result)
}
