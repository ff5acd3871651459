package notification

import (
	"context"

	common_models "go-cats/internal/common/models"
	"go-cats/pkg/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationService interface {
	Notify(ctx context.Context, recipients []string, n Notification) error
	GetNotifications(ctx context.Context, user *utils.UserClaims, page, limit int64) ([]Notification, int64, error)
	GetUnreadCount(ctx context.Context, user *utils.UserClaims) (int64, error)
	MarkAsRead(ctx context.Context, id string, user *utils.UserClaims) error
	MarkAllAsRead(ctx context.Context, user *utils.UserClaims) error
}

type NotificationServiceImpl struct {
	repo NotificationRepository
}

func NewNotificationService(repo NotificationRepository) NotificationService {
	return &NotificationServiceImpl{
		repo: repo,
	}
}

// Notify stores one copy of n per recipient. Recipients are user ids or role names.
func (s *NotificationServiceImpl) Notify(ctx context.Context, recipients []string, n Notification) error {
	if n.Channel == "" {
		n.Channel = ChannelInApp
	}
	for _, recipient := range recipients {
		notification := n
		notification.ID = primitive.NilObjectID
		notification.Recipient = recipient
		if err := s.repo.Create(ctx, &notification); err != nil {
			return err
		}
	}
	return nil
}

// addresses are the recipient values a user reads: their id plus each role
func addresses(user *utils.UserClaims) []string {
	return append([]string{user.UserID}, user.Roles...)
}

func (s *NotificationServiceImpl) GetNotifications(ctx context.Context, user *utils.UserClaims, page, limit int64) ([]Notification, int64, error) {
	page, limit = common_models.NormalizePage(page, limit)
	notifications, total, err := s.repo.GetByRecipients(ctx, addresses(user), page, limit)
	if err != nil {
		return nil, 0, err
	}
	if notifications == nil {
		notifications = []Notification{}
	}
	return notifications, total, nil
}

func (s *NotificationServiceImpl) GetUnreadCount(ctx context.Context, user *utils.UserClaims) (int64, error) {
	return s.repo.GetUnreadCount(ctx, addresses(user))
}

func (s *NotificationServiceImpl) MarkAsRead(ctx context.Context, id string, user *utils.UserClaims) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return common_models.Invalid("invalid notification ID")
	}
	return s.repo.MarkAsRead(ctx, objID, addresses(user))
}

func (s *NotificationServiceImpl) MarkAllAsRead(ctx context.Context, user *utils.UserClaims) error {
	return s.repo.MarkAllAsRead(ctx, addresses(user))
}
