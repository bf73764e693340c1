package services

import (
	"context"

	"mymoney/internal/core"
)

// The feed shows the latest entries only; older ones age out of view.
const notificationFeedLimit = 10

// NotificationStore is the slice of the store the notification feed needs.
type NotificationStore interface {
	ListNotifications(ctx context.Context, userID string, limit int) ([]core.NotificationRecord, error)
	ListUnreadNotifications(ctx context.Context, userID string) ([]core.NotificationRecord, error)
	MarkAllNotificationsRead(ctx context.Context, userID string) error
}

// NotificationService backs the in-app notification feed.
type NotificationService struct {
	store NotificationStore
}

func NewNotificationService(store NotificationStore) *NotificationService {
	return &NotificationService{store: store}
}

func (s *NotificationService) Feed(ctx context.Context, userID string) ([]core.NotificationRecord, error) {
	return s.store.ListNotifications(ctx, userID, notificationFeedLimit)
}

func (s *NotificationService) Unread(ctx context.Context, userID string) ([]core.NotificationRecord, error) {
	return s.store.ListUnreadNotifications(ctx, userID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	return s.store.MarkAllNotificationsRead(ctx, userID)
}
