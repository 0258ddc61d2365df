package repositories

import (
	"context"
	"fmt"
	"time"

	"proaluno-library/internal/adapters/persistence/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// notificationRepository handles notification data access
type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// Create inserts a notification record
func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

// CreateOnce inserts a notification record keyed by (loan, kind) and
// reports whether this call created it. The dedupe key's unique index
// makes the insert a no-op when the record already exists, so
// duplicate sweep runs cannot double-alert.
func (r *notificationRepository) CreateOnce(ctx context.Context, n *models.Notification) (bool, error) {
	if n.DedupeKey == nil {
		key := dedupeKey(n.LoanID, n.Kind)
		n.DedupeKey = &key
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(n)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MostRecent returns the creation time of the newest notification of
// the given kind for a loan, or nil when none exists
func (r *notificationRepository) MostRecent(ctx context.Context, loanID uint, kind string) (*time.Time, error) {
	var n models.Notification
	err := r.db.WithContext(ctx).
		Where("loan_id = ? AND kind = ?", loanID, kind).
		Order("created_at DESC").
		First(&n).Error
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &n.CreatedAt, nil
}

// ListByUserID lists a user's notifications, newest first
func (r *notificationRepository) ListByUserID(ctx context.Context, userID uint) ([]models.Notification, error) {
	var notifications []models.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&notifications).Error
	return notifications, err
}

// MarkRead marks a notification as read, scoped to its owner
func (r *notificationRepository) MarkRead(ctx context.Context, id, userID uint) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read_at", &now)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func dedupeKey(loanID uint, kind string) string {
	return fmt.Sprintf("%s:%d", kind, loanID)
}
