package services

import (
	"context"

	"proaluno-library/internal/adapters/persistence/models"
	"proaluno-library/internal/adapters/persistence/repositories"
	"proaluno-library/internal/core/domain"
)

// NotificationService handles the in-app notification feed
type NotificationService struct {
	notificationRepo repositories.NotificationRepository
}

// NewNotificationService creates a new notification service
func NewNotificationService(notificationRepo repositories.NotificationRepository) *NotificationService {
	return &NotificationService{notificationRepo: notificationRepo}
}

// ListMine lists the requester's notifications, newest first
func (s *NotificationService) ListMine(ctx context.Context, userID uint) ([]models.Notification, error) {
	return s.notificationRepo.ListByUserID(ctx, userID)
}

// MarkRead marks one of the requester's notifications as read
func (s *NotificationService) MarkRead(ctx context.Context, id, userID uint) error {
	if err := s.notificationRepo.MarkRead(ctx, id, userID); err != nil {
		if repositories.IsNotFound(err) {
			return domain.ErrNotFound
		}
		return err
	}
	return nil
}
