package services

import (
	"context"
	"fmt"
	"log"

	"proaluno-library/internal/adapters/persistence/models"
	"proaluno-library/internal/adapters/persistence/repositories"
	"proaluno-library/internal/core/domain"
)

// PolicyService handles circulation policy administration
type PolicyService struct {
	policyRepo repositories.PolicyRepository
}

// NewPolicyService creates a new policy service
func NewPolicyService(policyRepo repositories.PolicyRepository) *PolicyService {
	return &PolicyService{policyRepo: policyRepo}
}

// UpdatePolicyInput carries partial policy updates. Nil fields are
// left unchanged.
type UpdatePolicyInput struct {
	LoanDurationDays         *int     `json:"loan_duration_days"`
	MaxActiveLoansPerUser    *int     `json:"max_active_loans_per_user"`
	MaxRenewals              *int     `json:"max_renewals"`
	RenewalExtensionDays     *int     `json:"renewal_extension_days"`
	ExtensionWindowDays      *int     `json:"extension_window_days"`
	ExtensionBlockMultiplier *float64 `json:"extension_block_multiplier"`
	NudgeShortenedDueDays    *int     `json:"nudge_shortened_due_days"`
	NudgeCooldownHours       *int     `json:"nudge_cooldown_hours"`
	OverdueReminderDays      *int     `json:"overdue_reminder_days"`
}

// Current implements PolicyProvider. The policy is read fresh on every
// call so admin updates take effect immediately.
func (s *PolicyService) Current(ctx context.Context) (*models.CirculationPolicy, error) {
	return s.policyRepo.Get(ctx)
}

// Get returns the circulation policy
func (s *PolicyService) Get(ctx context.Context) (*models.CirculationPolicy, error) {
	return s.policyRepo.Get(ctx)
}

// Update applies a partial policy update after validating every
// changed field.
func (s *PolicyService) Update(ctx context.Context, input *UpdatePolicyInput) (*models.CirculationPolicy, error) {
	policy, err := s.policyRepo.Get(ctx)
	if err != nil {
		return nil, err
	}

	if input.LoanDurationDays != nil {
		policy.LoanDurationDays = *input.LoanDurationDays
	}
	if input.MaxActiveLoansPerUser != nil {
		policy.MaxActiveLoansPerUser = *input.MaxActiveLoansPerUser
	}
	if input.MaxRenewals != nil {
		policy.MaxRenewals = *input.MaxRenewals
	}
	if input.RenewalExtensionDays != nil {
		policy.RenewalExtensionDays = *input.RenewalExtensionDays
	}
	if input.ExtensionWindowDays != nil {
		policy.ExtensionWindowDays = *input.ExtensionWindowDays
	}
	if input.ExtensionBlockMultiplier != nil {
		policy.ExtensionBlockMultiplier = *input.ExtensionBlockMultiplier
	}
	if input.NudgeShortenedDueDays != nil {
		policy.NudgeShortenedDueDays = *input.NudgeShortenedDueDays
	}
	if input.NudgeCooldownHours != nil {
		policy.NudgeCooldownHours = *input.NudgeCooldownHours
	}
	if input.OverdueReminderDays != nil {
		policy.OverdueReminderDays = *input.OverdueReminderDays
	}

	if err := validatePolicy(policy); err != nil {
		return nil, err
	}

	if err := s.policyRepo.Save(ctx, policy); err != nil {
		return nil, err
	}

	log.Printf("✅ Circulation policy updated")
	return policy, nil
}

// validatePolicy rejects values that would wedge the loan state
// machine (zero-day loans, negative limits, shrinking extensions).
func validatePolicy(p *models.CirculationPolicy) error {
	if p.LoanDurationDays < 1 {
		return fmt.Errorf("%w: loan_duration_days must be at least 1", domain.ErrInvalidPolicyValue)
	}
	if p.MaxActiveLoansPerUser < 1 {
		return fmt.Errorf("%w: max_active_loans_per_user must be at least 1", domain.ErrInvalidPolicyValue)
	}
	if p.MaxRenewals < 0 {
		return fmt.Errorf("%w: max_renewals must not be negative", domain.ErrInvalidPolicyValue)
	}
	if p.RenewalExtensionDays < 1 {
		return fmt.Errorf("%w: renewal_extension_days must be at least 1", domain.ErrInvalidPolicyValue)
	}
	if p.ExtensionWindowDays < 0 {
		return fmt.Errorf("%w: extension_window_days must not be negative", domain.ErrInvalidPolicyValue)
	}
	if p.ExtensionBlockMultiplier < 1 {
		return fmt.Errorf("%w: extension_block_multiplier must be at least 1", domain.ErrInvalidPolicyValue)
	}
	// Zero is allowed: a nudge then collapses the due date to today
	if p.NudgeShortenedDueDays < 0 {
		return fmt.Errorf("%w: nudge_shortened_due_days must not be negative", domain.ErrInvalidPolicyValue)
	}
	if p.NudgeCooldownHours < 0 {
		return fmt.Errorf("%w: nudge_cooldown_hours must not be negative", domain.ErrInvalidPolicyValue)
	}
	if p.OverdueReminderDays < 1 {
		return fmt.Errorf("%w: overdue_reminder_days must be at least 1", domain.ErrInvalidPolicyValue)
	}
	return nil
}
