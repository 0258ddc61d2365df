package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"proaluno-library/internal/adapters/persistence/models"
	"proaluno-library/internal/adapters/persistence/repositories"
	"proaluno-library/internal/core/domain"
)

// OverdueService runs the daily overdue sweep. The sweep is safe to
// run any number of times: the first-overdue alert of a loan is
// deduplicated at the database level, and reminders are spaced by the
// policy interval regardless of how often the sweep fires.
type OverdueService struct {
	loanRepo         repositories.LoanRepository
	userRepo         repositories.UserRepository
	notificationRepo repositories.NotificationRepository
	policies         PolicyProvider
	mailer           Mailer
	now              func() time.Time
}

// NewOverdueService creates a new overdue sweep service
func NewOverdueService(
	loanRepo repositories.LoanRepository,
	userRepo repositories.UserRepository,
	notificationRepo repositories.NotificationRepository,
	policies PolicyProvider,
	mailer Mailer,
) *OverdueService {
	return &OverdueService{
		loanRepo:         loanRepo,
		userRepo:         userRepo,
		notificationRepo: notificationRepo,
		policies:         policies,
		mailer:           mailer,
		now:              time.Now,
	}
}

// SweepReport summarizes one sweep run
type SweepReport struct {
	Scanned       int `json:"scanned"`
	NewlyOverdue  int `json:"newly_overdue"`
	RemindersSent int `json:"reminders_sent"`
	Failed        int `json:"failed"`
}

// Run scans every active loan and alerts borrowers whose loans are
// past due. One failing loan never aborts the rest of the sweep.
func (s *OverdueService) Run(ctx context.Context) (*SweepReport, error) {
	policy, err := s.policies.Current(ctx)
	if err != nil {
		return nil, err
	}

	loans, err := s.loanRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{}
	now := s.now()
	for i := range loans {
		loan := &loans[i]
		if !loan.IsOverdue(now) {
			continue
		}
		report.Scanned++

		if err := s.sweepLoan(ctx, loan, policy, now, report); err != nil {
			report.Failed++
			log.Printf("❌ Overdue sweep failed for loan %d: %v", loan.ID, err)
		}
	}

	log.Printf("✅ Overdue sweep done: %d overdue, %d new, %d reminders, %d failed",
		report.Scanned, report.NewlyOverdue, report.RemindersSent, report.Failed)
	return report, nil
}

func (s *OverdueService) sweepLoan(ctx context.Context, loan *models.Loan, policy *models.CirculationPolicy, now time.Time, report *SweepReport) error {
	// First time this loan is seen overdue: the unique dedupe key
	// means exactly one sweep run wins, even with concurrent runs.
	created, err := s.notificationRepo.CreateOnce(ctx, &models.Notification{
		UserID:  loan.UserID,
		LoanID:  loan.ID,
		Kind:    string(domain.NotificationOverdue),
		Message: overdueMessage(loan),
	})
	if err != nil {
		return err
	}
	if created {
		report.NewlyOverdue++
		if user, err := s.userRepo.GetByID(ctx, loan.UserID); err == nil {
			s.mailer.SendOverdueAlert(user, loan)
		}
		// No reminder in the same run that raised the alert
		return nil
	}

	// Already alerted before: remind when no reminder exists yet or
	// the latest one is older than the policy interval
	last, err := s.notificationRepo.MostRecent(ctx, loan.ID, string(domain.NotificationOverdueReminder))
	if err != nil {
		return err
	}
	interval := time.Duration(policy.OverdueReminderDays) * 24 * time.Hour
	if last != nil && now.Sub(*last) < interval {
		return nil
	}

	if err := s.notificationRepo.Create(ctx, &models.Notification{
		UserID:  loan.UserID,
		LoanID:  loan.ID,
		Kind:    string(domain.NotificationOverdueReminder),
		Message: reminderMessage(loan, now),
	}); err != nil {
		return err
	}
	report.RemindersSent++
	if user, err := s.userRepo.GetByID(ctx, loan.UserID); err == nil {
		s.mailer.SendOverdueReminder(user, loan)
	}
	return nil
}

func overdueMessage(loan *models.Loan) string {
	return fmt.Sprintf("O livro \"%s\" está atrasado desde %s. Por favor devolva-o à biblioteca.",
		loan.Book.Title, loan.DueDate.Format("02/01/2006"))
}

func reminderMessage(loan *models.Loan, now time.Time) string {
	days := int(now.Sub(loan.DueDate).Hours() / 24)
	return fmt.Sprintf("Lembrete: o livro \"%s\" está atrasado há %d dias.", loan.Book.Title, days)
}
