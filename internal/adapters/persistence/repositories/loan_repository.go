package repositories

import (
	"context"
	"errors"

	"proaluno-library/internal/adapters/persistence/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrBookOnLoan is returned by CreateIfAvailable when the book
// already has an active loan
var ErrBookOnLoan = errors.New("book has an active loan")

// loanRepository handles loan data access
type loanRepository struct {
	db *gorm.DB
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(db *gorm.DB) LoanRepository {
	return &loanRepository{db: db}
}

// Create creates a new loan
func (r *loanRepository) Create(ctx context.Context, loan *models.Loan) error {
	return r.db.WithContext(ctx).Create(loan).Error
}

// CreateIfAvailable creates a loan while holding the book row lock.
// The availability check and the insert share one transaction, so of
// two concurrent borrows of the same copy exactly one wins and the
// other gets ErrBookOnLoan.
func (r *loanRepository) CreateIfAvailable(ctx context.Context, loan *models.Loan) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var book models.Book
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&book, loan.BookID).Error; err != nil {
			return err
		}

		var active int64
		if err := tx.Model(&models.Loan{}).
			Where("book_id = ? AND returned_at IS NULL", loan.BookID).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return ErrBookOnLoan
		}

		return tx.Create(loan).Error
	})
}

// GetByID gets a loan by ID with relations
func (r *loanRepository) GetByID(ctx context.Context, id uint) (*models.Loan, error) {
	var loan models.Loan
	err := r.db.WithContext(ctx).
		Preload("Book").
		Preload("User").
		First(&loan, id).Error
	return &loan, err
}

// GetActiveByID gets a loan by ID only if it has not been returned
func (r *loanRepository) GetActiveByID(ctx context.Context, id uint) (*models.Loan, error) {
	var loan models.Loan
	err := r.db.WithContext(ctx).
		Preload("Book").
		Preload("User").
		Where("id = ? AND returned_at IS NULL", id).
		First(&loan).Error
	return &loan, err
}

// GetActiveByBookID gets the active loan for a book, if any
func (r *loanRepository) GetActiveByBookID(ctx context.Context, bookID uint) (*models.Loan, error) {
	var loan models.Loan
	err := r.db.WithContext(ctx).
		Preload("Book").
		Preload("User").
		Where("book_id = ? AND returned_at IS NULL", bookID).
		First(&loan).Error
	return &loan, err
}

// HasActiveByBookID checks whether a book is currently on loan
func (r *loanRepository) HasActiveByBookID(ctx context.Context, bookID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("book_id = ? AND returned_at IS NULL", bookID).
		Count(&count).Error
	return count > 0, err
}

// CountActiveByUserID counts a user's active loans
func (r *loanRepository) CountActiveByUserID(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("user_id = ? AND returned_at IS NULL", userID).
		Count(&count).Error
	return count, err
}

// ListAll lists all loans, newest first
func (r *loanRepository) ListAll(ctx context.Context) ([]models.Loan, error) {
	var loans []models.Loan
	err := r.db.WithContext(ctx).
		Preload("Book").
		Preload("User").
		Order("borrowed_at DESC").
		Find(&loans).Error
	return loans, err
}

// ListActive lists all loans that have not been returned
func (r *loanRepository) ListActive(ctx context.Context) ([]models.Loan, error) {
	var loans []models.Loan
	err := r.db.WithContext(ctx).
		Preload("Book").
		Preload("User").
		Where("returned_at IS NULL").
		Order("due_date ASC").
		Find(&loans).Error
	return loans, err
}

// ListByUserID lists all loans of a user, newest first
func (r *loanRepository) ListByUserID(ctx context.Context, userID uint) ([]models.Loan, error) {
	var loans []models.Loan
	err := r.db.WithContext(ctx).
		Preload("Book").
		Where("user_id = ?", userID).
		Order("borrowed_at DESC").
		Find(&loans).Error
	return loans, err
}

// ListActiveByUserID lists a user's active loans
func (r *loanRepository) ListActiveByUserID(ctx context.Context, userID uint) ([]models.Loan, error) {
	var loans []models.Loan
	err := r.db.WithContext(ctx).
		Preload("Book").
		Where("user_id = ? AND returned_at IS NULL", userID).
		Order("due_date ASC").
		Find(&loans).Error
	return loans, err
}

// Mutate loads the loan under SELECT ... FOR UPDATE, applies fn and
// saves inside one transaction. Two concurrent mutations of the same
// loan serialize on the row lock, so renewals/due-date updates are
// never lost.
func (r *loanRepository) Mutate(ctx context.Context, id uint, fn func(loan *models.Loan) error) (*models.Loan, error) {
	var loan models.Loan
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&loan, id).Error; err != nil {
			return err
		}
		if err := fn(&loan); err != nil {
			return err
		}
		return tx.Save(&loan).Error
	})
	if err != nil {
		return nil, err
	}
	// Reload relations outside the lock
	if reloaded, rerr := r.GetByID(ctx, loan.ID); rerr == nil {
		return reloaded, nil
	}
	return &loan, nil
}

// IsNotFound reports whether err is a gorm record-not-found error
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
