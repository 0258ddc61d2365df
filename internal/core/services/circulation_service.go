package services

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	"proaluno-library/internal/adapters/persistence/models"
	"proaluno-library/internal/adapters/persistence/repositories"
	"proaluno-library/internal/core/domain"
)

// CirculationService handles the loan state machine: borrow, return,
// renew, extend and nudge. Every mutation of an existing loan goes
// through LoanRepository.Mutate so concurrent calls on the same loan
// serialize, and every precondition is re-checked under the row lock.
type CirculationService struct {
	loanRepo repositories.LoanRepository
	bookRepo repositories.BookRepository
	userRepo repositories.UserRepository
	policies PolicyProvider
	mailer   Mailer
	now      func() time.Time
}

// NewCirculationService creates a new circulation service
func NewCirculationService(
	loanRepo repositories.LoanRepository,
	bookRepo repositories.BookRepository,
	userRepo repositories.UserRepository,
	policies PolicyProvider,
	mailer Mailer,
) *CirculationService {
	return &CirculationService{
		loanRepo: loanRepo,
		bookRepo: bookRepo,
		userRepo: userRepo,
		policies: policies,
		mailer:   mailer,
		now:      time.Now,
	}
}

// ============================================================
// Borrow
// ============================================================

// Borrow checks out a book for the authenticated user
func (s *CirculationService) Borrow(ctx context.Context, userID, bookID uint) (*models.Loan, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	return s.borrow(ctx, user, bookID)
}

// BorrowAsAdmin checks out a book on behalf of a patron identified by
// NUSP (counter service)
func (s *CirculationService) BorrowAsAdmin(ctx context.Context, nusp string, bookID uint) (*models.Loan, error) {
	user, err := s.userRepo.GetByNUSP(ctx, nusp)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	return s.borrow(ctx, user, bookID)
}

func (s *CirculationService) borrow(ctx context.Context, user *models.User, bookID uint) (*models.Loan, error) {
	// 1. Borrower must be an active account
	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}

	policy, err := s.policies.Current(ctx)
	if err != nil {
		return nil, err
	}

	// 2. Active loan limit
	active, err := s.loanRepo.CountActiveByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if active >= int64(policy.MaxActiveLoansPerUser) {
		return nil, domain.ErrLoanLimitReached
	}

	// 3. Book must exist
	book, err := s.bookRepo.GetByID(ctx, bookID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, domain.ErrBookNotFound
		}
		return nil, err
	}

	// 4. Reserved copies never circulate
	if book.IsReserved {
		return nil, domain.ErrBookReserved
	}

	// 5. Create the loan. The repository checks availability and
	// inserts under the book row lock, so a concurrent borrow of the
	// same copy is told the book is out instead of double-lending it.
	now := s.now()
	loan := &models.Loan{
		BookID:     bookID,
		UserID:     user.ID,
		BorrowedAt: now,
		DueDate:    now.AddDate(0, 0, policy.LoanDurationDays),
	}
	if err := s.loanRepo.CreateIfAvailable(ctx, loan); err != nil {
		if errors.Is(err, repositories.ErrBookOnLoan) {
			return nil, domain.ErrBookUnavailable
		}
		return nil, err
	}
	loan.Book = *book
	loan.User = *user

	log.Printf("✅ Loan created: book %d -> user %s (due %s)", bookID, user.NUSP, loan.DueDate.Format("2006-01-02"))

	s.mailer.SendLoanConfirmation(user, loan)
	return loan, nil
}

// RegisterInternalUse records an in-library consultation as a loan
// that is born returned, so usage statistics include reading-room use
// without ever blocking the copy. The loan is filed under the staff
// account that recorded it.
func (s *CirculationService) RegisterInternalUse(ctx context.Context, bookID, recordedBy uint) (*models.Loan, error) {
	book, err := s.bookRepo.GetByID(ctx, bookID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, domain.ErrBookNotFound
		}
		return nil, err
	}

	now := s.now()
	loan := &models.Loan{
		BookID:     bookID,
		UserID:     recordedBy,
		BorrowedAt: now,
		DueDate:    now,
		ReturnedAt: &now,
	}
	if err := s.loanRepo.Create(ctx, loan); err != nil {
		return nil, err
	}
	loan.Book = *book

	log.Printf("✅ Internal use registered: book %d", bookID)
	return loan, nil
}

// ============================================================
// Return
// ============================================================

// ReturnResult reports a return. AlreadyReturned means the loan was
// closed before this call; returning twice is not an error.
type ReturnResult struct {
	Loan            *models.Loan
	AlreadyReturned bool
}

// Return closes a loan. Idempotent: a second return of the same loan
// succeeds and reports AlreadyReturned.
func (s *CirculationService) Return(ctx context.Context, loanID, requesterID uint, isAdmin bool) (*ReturnResult, error) {
	result := &ReturnResult{}
	loan, err := s.loanRepo.Mutate(ctx, loanID, func(loan *models.Loan) error {
		if !isAdmin && loan.UserID != requesterID {
			return domain.ErrNotLoanOwner
		}
		if loan.ReturnedAt != nil {
			result.AlreadyReturned = true
			return nil
		}
		now := s.now()
		loan.ReturnedAt = &now
		return nil
	})
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}
	result.Loan = loan

	if !result.AlreadyReturned {
		log.Printf("✅ Loan %d returned", loanID)
		if user, err := s.userRepo.GetByID(ctx, loan.UserID); err == nil {
			s.mailer.SendReturnConfirmation(user, loan)
		}
	}
	return result, nil
}

// ReturnByBook closes the active loan of a book (counter return where
// only the physical copy is in hand)
func (s *CirculationService) ReturnByBook(ctx context.Context, bookID, requesterID uint, isAdmin bool) (*ReturnResult, error) {
	loan, err := s.loanRepo.GetActiveByBookID(ctx, bookID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}
	return s.Return(ctx, loan.ID, requesterID, isAdmin)
}

// ============================================================
// Renew
// ============================================================

// RenewPreview reports renewal eligibility without touching the loan
type RenewPreview struct {
	Eligible          bool       `json:"eligible"`
	Reason            string     `json:"reason,omitempty"`
	RenewalsRemaining int        `json:"renewals_remaining"`
	NewDueDate        *time.Time `json:"new_due_date,omitempty"`
}

// Renew pushes the due date forward from the current due date, not
// from today, so renewing early never costs loan time.
func (s *CirculationService) Renew(ctx context.Context, loanID, requesterID uint, isAdmin bool) (*models.Loan, error) {
	policy, err := s.policies.Current(ctx)
	if err != nil {
		return nil, err
	}

	loan, err := s.loanRepo.Mutate(ctx, loanID, func(loan *models.Loan) error {
		if err := s.checkRenewable(loan, policy, requesterID, isAdmin); err != nil {
			return err
		}
		loan.DueDate = loan.DueDate.AddDate(0, 0, policy.RenewalExtensionDays)
		loan.Renewals++
		return nil
	})
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}

	log.Printf("✅ Loan %d renewed (%d/%d, due %s)", loanID, loan.Renewals, policy.MaxRenewals, loan.DueDate.Format("2006-01-02"))

	if user, err := s.userRepo.GetByID(ctx, loan.UserID); err == nil {
		s.mailer.SendRenewalConfirmation(user, loan)
	}
	return loan, nil
}

// PreviewRenew runs the renewal checks without mutating the loan
func (s *CirculationService) PreviewRenew(ctx context.Context, loanID, requesterID uint, isAdmin bool) (*RenewPreview, error) {
	policy, err := s.policies.Current(ctx)
	if err != nil {
		return nil, err
	}

	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}

	preview := &RenewPreview{
		RenewalsRemaining: policy.MaxRenewals - loan.Renewals,
	}
	if err := s.checkRenewable(loan, policy, requesterID, isAdmin); err != nil {
		if domain.KindOf(err) == domain.KindUnknown {
			return nil, err
		}
		preview.Reason = err.Error()
		return preview, nil
	}
	newDue := loan.DueDate.AddDate(0, 0, policy.RenewalExtensionDays)
	preview.Eligible = true
	preview.NewDueDate = &newDue
	return preview, nil
}

func (s *CirculationService) checkRenewable(loan *models.Loan, policy *models.CirculationPolicy, requesterID uint, isAdmin bool) error {
	if loan.ReturnedAt != nil {
		return domain.ErrLoanNotFound
	}
	if !isAdmin && loan.UserID != requesterID {
		return domain.ErrNotLoanOwner
	}
	if loan.Renewals >= policy.MaxRenewals {
		return domain.ErrRenewalLimitReached
	}
	return nil
}

// ============================================================
// Extension
// ============================================================

// ExtensionPreview reports extension eligibility without touching the
// loan
type ExtensionPreview struct {
	Eligible   bool       `json:"eligible"`
	Reason     string     `json:"reason,omitempty"`
	NewDueDate *time.Time `json:"new_due_date,omitempty"`
}

// RequestExtension grants the one-time block extension: available only
// after all renewals are spent, inside the eligibility window before
// the due date, and never on an overdue loan. The new due date is
// counted from today.
func (s *CirculationService) RequestExtension(ctx context.Context, loanID, requesterID uint, isAdmin bool) (*models.Loan, error) {
	policy, err := s.policies.Current(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	loan, err := s.loanRepo.Mutate(ctx, loanID, func(loan *models.Loan) error {
		if err := s.checkExtendable(loan, policy, requesterID, isAdmin, now); err != nil {
			return err
		}
		loan.DueDate = now.AddDate(0, 0, extensionDays(policy))
		loan.IsExtended = true
		return nil
	})
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}

	log.Printf("✅ Loan %d extended until %s", loanID, loan.DueDate.Format("2006-01-02"))

	if user, err := s.userRepo.GetByID(ctx, loan.UserID); err == nil {
		s.mailer.SendExtensionConfirmation(user, loan)
	}
	return loan, nil
}

// PreviewExtension runs the extension checks without mutating the loan
func (s *CirculationService) PreviewExtension(ctx context.Context, loanID, requesterID uint, isAdmin bool) (*ExtensionPreview, error) {
	policy, err := s.policies.Current(ctx)
	if err != nil {
		return nil, err
	}

	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}

	preview := &ExtensionPreview{}
	now := s.now()
	if err := s.checkExtendable(loan, policy, requesterID, isAdmin, now); err != nil {
		if domain.KindOf(err) == domain.KindUnknown {
			return nil, err
		}
		preview.Reason = err.Error()
		return preview, nil
	}
	newDue := now.AddDate(0, 0, extensionDays(policy))
	preview.Eligible = true
	preview.NewDueDate = &newDue
	return preview, nil
}

func (s *CirculationService) checkExtendable(loan *models.Loan, policy *models.CirculationPolicy, requesterID uint, isAdmin bool, now time.Time) error {
	// 1. Loan must still be open
	if loan.ReturnedAt != nil {
		return domain.ErrLoanNotFound
	}

	// 2. Only the borrower (or staff) may extend
	if !isAdmin && loan.UserID != requesterID {
		return domain.ErrNotLoanOwner
	}

	// 3. Extension is the step after the last renewal, not a shortcut
	if loan.Renewals < policy.MaxRenewals {
		return domain.ErrRenewalsNotExhausted
	}

	// 4. One extension per loan, ever
	if loan.IsExtended {
		return domain.ErrAlreadyExtended
	}

	// 5. Overdue loans must come back to the counter
	if loan.IsOverdue(now) {
		return domain.ErrLoanOverdue
	}

	// 6. Must be close enough to the due date
	window := time.Duration(policy.ExtensionWindowDays) * 24 * time.Hour
	if loan.DueDate.Sub(now) > window {
		return domain.ErrOutsideExtensionWindow
	}

	return nil
}

// extensionDays converts the block multiplier into whole days
func extensionDays(policy *models.CirculationPolicy) int {
	return int(math.Round(float64(policy.RenewalExtensionDays) * policy.ExtensionBlockMultiplier))
}

// ============================================================
// Nudge
// ============================================================

// NudgeImpact reports what a nudge did to the loan's due date
type NudgeImpact struct {
	Loan           *models.Loan
	DueDateChanged bool
}

// ApplyNudgeImpact shortens an extended loan's due date when another
// patron asks for the book. Non-extended loans keep their full term;
// repeated nudges inside the cooldown are absorbed; the due date only
// ever moves earlier, never later.
func (s *CirculationService) ApplyNudgeImpact(ctx context.Context, loanID uint) (*NudgeImpact, error) {
	policy, err := s.policies.Current(ctx)
	if err != nil {
		return nil, err
	}

	impact := &NudgeImpact{}
	now := s.now()
	loan, err := s.loanRepo.Mutate(ctx, loanID, func(loan *models.Loan) error {
		if loan.ReturnedAt != nil || !loan.IsExtended {
			return nil
		}
		if loan.LastNudgedAt != nil {
			cooldown := time.Duration(policy.NudgeCooldownHours) * time.Hour
			if now.Sub(*loan.LastNudgedAt) < cooldown {
				return nil
			}
		}
		candidate := now.AddDate(0, 0, policy.NudgeShortenedDueDays)
		if !candidate.Before(loan.DueDate) {
			return nil
		}
		loan.DueDate = candidate
		loan.LastNudgedAt = &now
		impact.DueDateChanged = true
		return nil
	})
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}
	impact.Loan = loan

	if impact.DueDateChanged {
		log.Printf("⚠️ Loan %d due date shortened to %s by nudge", loanID, loan.DueDate.Format("2006-01-02"))
	}
	return impact, nil
}

// ============================================================
// Queries
// ============================================================

// GetLoan returns a loan visible to the requester
func (s *CirculationService) GetLoan(ctx context.Context, loanID, requesterID uint, isAdmin bool) (*models.Loan, error) {
	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}
	if !isAdmin && loan.UserID != requesterID {
		return nil, domain.ErrLoanNotFound
	}
	return loan, nil
}

// FindActiveByBook returns the open loan of a book, if any
func (s *CirculationService) FindActiveByBook(ctx context.Context, bookID uint) (*models.Loan, error) {
	loan, err := s.loanRepo.GetActiveByBookID(ctx, bookID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}
	return loan, nil
}

// ListAll returns every loan, open and closed
func (s *CirculationService) ListAll(ctx context.Context) ([]models.Loan, error) {
	return s.loanRepo.ListAll(ctx)
}

// ListActive returns the loans currently out
func (s *CirculationService) ListActive(ctx context.Context) ([]models.Loan, error) {
	return s.loanRepo.ListActive(ctx)
}

// ListOverdue returns the active loans past their due date right now
func (s *CirculationService) ListOverdue(ctx context.Context) ([]models.Loan, error) {
	active, err := s.loanRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	overdue := make([]models.Loan, 0)
	for _, loan := range active {
		if loan.IsOverdue(now) {
			overdue = append(overdue, loan)
		}
	}
	return overdue, nil
}

// ListByUser returns a user's loan history
func (s *CirculationService) ListByUser(ctx context.Context, userID uint) ([]models.Loan, error) {
	return s.loanRepo.ListByUserID(ctx, userID)
}

// ListActiveByUser returns a user's open loans
func (s *CirculationService) ListActiveByUser(ctx context.Context, userID uint) ([]models.Loan, error) {
	return s.loanRepo.ListActiveByUserID(ctx, userID)
}

// Now exposes the service clock so handlers compute the overdue flag
// with the same time source the engine uses
func (s *CirculationService) Now() time.Time {
	return s.now()
}
