package services

import (
	"context"

	"proaluno-library/internal/adapters/persistence/models"
)

// Note: AuthService implementation is in auth_service.go
// Note: CirculationService implementation is in circulation_service.go

// Mailer sends borrower-facing emails. Implementations must not block
// the caller: delivery failures are logged, never surfaced as errors,
// so a dead relay cannot break circulation operations.
type Mailer interface {
	SendLoanConfirmation(user *models.User, loan *models.Loan)
	SendReturnConfirmation(user *models.User, loan *models.Loan)
	SendRenewalConfirmation(user *models.User, loan *models.Loan)
	SendExtensionConfirmation(user *models.User, loan *models.Loan)
	SendOverdueAlert(user *models.User, loan *models.Loan)
	SendOverdueReminder(user *models.User, loan *models.Loan)
	SendNudge(user *models.User, loan *models.Loan, dueDateChanged bool)
}

// PolicyProvider exposes the current circulation policy to services
// that consult it on every operation (never cached across calls).
type PolicyProvider interface {
	Current(ctx context.Context) (*models.CirculationPolicy, error)
}
