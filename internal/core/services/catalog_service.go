package services

import (
	"context"
	"log"
	"strings"

	"proaluno-library/internal/adapters/persistence/models"
	"proaluno-library/internal/adapters/persistence/repositories"
	"proaluno-library/internal/core/domain"
	"proaluno-library/internal/pkg/pagination"
)

// CatalogService handles the book catalog
type CatalogService struct {
	bookRepo repositories.BookRepository
	loanRepo repositories.LoanRepository
}

// NewCatalogService creates a new catalog service
func NewCatalogService(bookRepo repositories.BookRepository, loanRepo repositories.LoanRepository) *CatalogService {
	return &CatalogService{bookRepo: bookRepo, loanRepo: loanRepo}
}

// CreateBookInput represents book registration input
type CreateBookInput struct {
	Title      string `json:"title" validate:"required"`
	Author     string `json:"author"`
	Edition    string `json:"edition"`
	IsReserved bool   `json:"is_reserved"`
}

// UpdateBookInput carries partial book updates. Nil fields are left
// unchanged.
type UpdateBookInput struct {
	Title      *string `json:"title"`
	Author     *string `json:"author"`
	Edition    *string `json:"edition"`
	IsReserved *bool   `json:"is_reserved"`
}

// ListBooksOutput represents list books output
type ListBooksOutput struct {
	Books      []*models.Book `json:"books"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"total_pages"`
}

// BookAvailability reports whether a book can be borrowed right now
type BookAvailability struct {
	Book      *models.Book `json:"book"`
	Available bool         `json:"available"`
	OnLoan    bool         `json:"on_loan"`
}

// Create registers a new book
func (s *CatalogService) Create(ctx context.Context, input *CreateBookInput) (*models.Book, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, domain.ErrInvalidInput
	}

	book := &models.Book{
		Title:      strings.TrimSpace(input.Title),
		Author:     strings.TrimSpace(input.Author),
		Edition:    strings.TrimSpace(input.Edition),
		IsReserved: input.IsReserved,
	}
	if err := s.bookRepo.Create(ctx, book); err != nil {
		return nil, err
	}

	log.Printf("✅ Book registered: %s (ID: %d)", book.Title, book.ID)
	return book, nil
}

// GetByID gets a book by ID
func (s *CatalogService) GetByID(ctx context.Context, id uint) (*models.Book, error) {
	book, err := s.bookRepo.GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, domain.ErrBookNotFound
		}
		return nil, err
	}
	return book, nil
}

// GetAvailability gets a book together with its circulation status
func (s *CatalogService) GetAvailability(ctx context.Context, id uint) (*BookAvailability, error) {
	book, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	onLoan, err := s.loanRepo.HasActiveByBookID(ctx, id)
	if err != nil {
		return nil, err
	}

	return &BookAvailability{
		Book:      book,
		Available: !book.IsReserved && !onLoan,
		OnLoan:    onLoan,
	}, nil
}

// Update applies a partial book update
func (s *CatalogService) Update(ctx context.Context, id uint, input *UpdateBookInput) (*models.Book, error) {
	book, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		if strings.TrimSpace(*input.Title) == "" {
			return nil, domain.ErrInvalidInput
		}
		book.Title = strings.TrimSpace(*input.Title)
	}
	if input.Author != nil {
		book.Author = strings.TrimSpace(*input.Author)
	}
	if input.Edition != nil {
		book.Edition = strings.TrimSpace(*input.Edition)
	}
	if input.IsReserved != nil {
		book.IsReserved = *input.IsReserved
	}

	if err := s.bookRepo.Update(ctx, book); err != nil {
		return nil, err
	}
	return book, nil
}

// List lists books with pagination
func (s *CatalogService) List(ctx context.Context, page, limit int) (*ListBooksOutput, error) {
	page, limit = pagination.Clamp(page, limit)

	books, total, err := s.bookRepo.List(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}

	return &ListBooksOutput{
		Books:      books,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: pagination.Pages(total, limit),
	}, nil
}
