package services

import (
	"context"
	"fmt"
	"log"

	"proaluno-library/internal/adapters/persistence/models"
	"proaluno-library/internal/adapters/persistence/repositories"
	"proaluno-library/internal/core/domain"
)

// NudgeService handles "someone wants this book" signals. The
// borrower is always told about the interest; whether the due date
// actually moves is decided by the circulation engine.
type NudgeService struct {
	circulation      *CirculationService
	userRepo         repositories.UserRepository
	notificationRepo repositories.NotificationRepository
	mailer           Mailer
}

// NewNudgeService creates a new nudge service
func NewNudgeService(
	circulation *CirculationService,
	userRepo repositories.UserRepository,
	notificationRepo repositories.NotificationRepository,
	mailer Mailer,
) *NudgeService {
	return &NudgeService{
		circulation:      circulation,
		userRepo:         userRepo,
		notificationRepo: notificationRepo,
		mailer:           mailer,
	}
}

// NudgeResult reports how a nudge landed
type NudgeResult struct {
	Loan           *models.LoanResponse `json:"loan"`
	DueDateChanged bool                 `json:"due_date_changed"`
}

// NudgeLoan registers interest in the book held by a loan
func (s *NudgeService) NudgeLoan(ctx context.Context, loanID uint) (*NudgeResult, error) {
	impact, err := s.circulation.ApplyNudgeImpact(ctx, loanID)
	if err != nil {
		return nil, err
	}
	return s.deliver(ctx, impact)
}

// NudgeBook registers interest in a book by its ID, resolving the
// active loan first
func (s *NudgeService) NudgeBook(ctx context.Context, bookID uint) (*NudgeResult, error) {
	loan, err := s.circulation.FindActiveByBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return s.NudgeLoan(ctx, loan.ID)
}

func (s *NudgeService) deliver(ctx context.Context, impact *NudgeImpact) (*NudgeResult, error) {
	loan := impact.Loan

	// Closed loans absorb the nudge with nothing to tell anyone
	if loan.ReturnedAt != nil {
		return &NudgeResult{Loan: loan.ToResponse(s.circulation.Now())}, nil
	}

	message := fmt.Sprintf("Outra pessoa está aguardando o livro \"%s\".", loan.Book.Title)
	if impact.DueDateChanged {
		message = fmt.Sprintf("Outra pessoa está aguardando o livro \"%s\". A nova data de devolução é %s.",
			loan.Book.Title, loan.DueDate.Format("02/01/2006"))
	}
	if err := s.notificationRepo.Create(ctx, &models.Notification{
		UserID:  loan.UserID,
		LoanID:  loan.ID,
		Kind:    string(domain.NotificationNudge),
		Message: message,
	}); err != nil {
		log.Printf("⚠️ Failed to record nudge notification for loan %d: %v", loan.ID, err)
	}

	if user, err := s.userRepo.GetByID(ctx, loan.UserID); err == nil {
		s.mailer.SendNudge(user, loan, impact.DueDateChanged)
	}

	return &NudgeResult{
		Loan:           loan.ToResponse(s.circulation.Now()),
		DueDateChanged: impact.DueDateChanged,
	}, nil
}
