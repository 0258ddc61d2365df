package repositories

import (
	"context"

	"proaluno-library/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// bookRepository handles book data access
type bookRepository struct {
	db *gorm.DB
}

// NewBookRepository creates a new book repository
func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepository{db: db}
}

// Create creates a new book
func (r *bookRepository) Create(ctx context.Context, book *models.Book) error {
	return r.db.WithContext(ctx).Create(book).Error
}

// GetByID gets a book by ID
func (r *bookRepository) GetByID(ctx context.Context, id uint) (*models.Book, error) {
	var book models.Book
	err := r.db.WithContext(ctx).First(&book, id).Error
	return &book, err
}

// Update updates a book
func (r *bookRepository) Update(ctx context.Context, book *models.Book) error {
	return r.db.WithContext(ctx).Save(book).Error
}

// List lists books with pagination
func (r *bookRepository) List(ctx context.Context, offset, limit int) ([]*models.Book, int64, error) {
	var books []*models.Book
	var total int64

	r.db.WithContext(ctx).Model(&models.Book{}).Count(&total)

	err := r.db.WithContext(ctx).
		Order("title ASC").
		Offset(offset).
		Limit(limit).
		Find(&books).Error

	return books, total, err
}
