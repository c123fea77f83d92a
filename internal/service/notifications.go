package service

import (
	"context"

	"github.com/mmeshcher/marketplace/internal/model"
)

// Notifications возвращает уведомления учётной записи.
func (s *Service) Notifications(ctx context.Context, account *model.Account) ([]model.Notification, error) {
	if account == nil {
		return nil, ErrForbidden
	}
	return s.repo.ListNotifications(ctx, account.ID)
}

// MarkNotificationRead отмечает уведомление прочитанным.
func (s *Service) MarkNotificationRead(ctx context.Context, account *model.Account, id string) error {
	if account == nil {
		return ErrForbidden
	}
	return s.repo.MarkNotificationRead(ctx, account.ID, id)
}
