package repositories

import (
	"context"

	"proaluno-library/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// policySingletonID is the fixed primary key of the policy row
const policySingletonID = 1

// policyRepository handles circulation policy data access
type policyRepository struct {
	db *gorm.DB
}

// NewPolicyRepository creates a new policy repository
func NewPolicyRepository(db *gorm.DB) PolicyRepository {
	return &policyRepository{db: db}
}

// Get reads the singleton policy row. The row is read fresh on every
// call so policy updates take effect immediately across all
// components.
func (r *policyRepository) Get(ctx context.Context) (*models.CirculationPolicy, error) {
	var policy models.CirculationPolicy
	err := r.db.WithContext(ctx).First(&policy, policySingletonID).Error
	return &policy, err
}

// Save persists the singleton policy row
func (r *policyRepository) Save(ctx context.Context, policy *models.CirculationPolicy) error {
	policy.ID = policySingletonID
	return r.db.WithContext(ctx).Save(policy).Error
}
