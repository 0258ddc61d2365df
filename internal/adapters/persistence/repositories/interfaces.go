package repositories

import (
	"context"
	"time"

	"proaluno-library/internal/adapters/persistence/models"
)

// UserRepository defines user repository interface
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByNUSP(ctx context.Context, nusp string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	List(ctx context.Context, offset, limit int) ([]*models.User, int64, error)
	ExistsByNUSP(ctx context.Context, nusp string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// RefreshTokenRepository defines refresh token repository interface
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	Revoke(ctx context.Context, id uint) error
	RevokeAllByUserID(ctx context.Context, userID uint) error
	DeleteExpired(ctx context.Context) error
}

// BookRepository defines book repository interface
type BookRepository interface {
	Create(ctx context.Context, book *models.Book) error
	GetByID(ctx context.Context, id uint) (*models.Book, error)
	Update(ctx context.Context, book *models.Book) error
	List(ctx context.Context, offset, limit int) ([]*models.Book, int64, error)
}

// LoanRepository defines loan repository interface. Mutate runs fn
// against the loan row under a row lock inside a transaction so
// concurrent renew/return/nudge calls on the same loan serialize
// instead of losing updates. CreateIfAvailable inserts a loan only
// while no other active loan holds the book; the availability check
// and the insert run under the book row lock so two concurrent
// borrows of one copy cannot both win.
type LoanRepository interface {
	Create(ctx context.Context, loan *models.Loan) error
	CreateIfAvailable(ctx context.Context, loan *models.Loan) error
	GetByID(ctx context.Context, id uint) (*models.Loan, error)
	GetActiveByID(ctx context.Context, id uint) (*models.Loan, error)
	GetActiveByBookID(ctx context.Context, bookID uint) (*models.Loan, error)
	HasActiveByBookID(ctx context.Context, bookID uint) (bool, error)
	CountActiveByUserID(ctx context.Context, userID uint) (int64, error)
	ListAll(ctx context.Context) ([]models.Loan, error)
	ListActive(ctx context.Context) ([]models.Loan, error)
	ListByUserID(ctx context.Context, userID uint) ([]models.Loan, error)
	ListActiveByUserID(ctx context.Context, userID uint) ([]models.Loan, error)
	Mutate(ctx context.Context, id uint, fn func(loan *models.Loan) error) (*models.Loan, error)
}

// PolicyRepository defines circulation policy repository interface
type PolicyRepository interface {
	Get(ctx context.Context) (*models.CirculationPolicy, error)
	Save(ctx context.Context, policy *models.CirculationPolicy) error
}

// NotificationRepository defines notification repository interface.
// CreateOnce reports whether this call actually created the record,
// which drives the email-on-first-occurrence semantics of the sweep.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	CreateOnce(ctx context.Context, n *models.Notification) (bool, error)
	MostRecent(ctx context.Context, loanID uint, kind string) (*time.Time, error)
	ListByUserID(ctx context.Context, userID uint) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID uint) error
}
