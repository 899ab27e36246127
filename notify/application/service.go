package application

import (
	"context"
	"fmt"

	"github.com/AzielCF/az-admin/notify/domain"
	"github.com/sirupsen/logrus"
)

// Service stores in-app notifications and forwards email requests.
type Service struct {
	repo  domain.Repository
	email domain.EmailSender
}

func NewService(repo domain.Repository, email domain.EmailSender) *Service {
	return &Service{repo: repo, email: email}
}

func (s *Service) Notify(ctx context.Context, n domain.Notification) error {
	if n.UserID == "" {
		return fmt.Errorf("notification requires a user")
	}
	if err := s.repo.Create(ctx, &n); err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}
	if n.ViaEmail && s.email != nil {
		if err := s.email.Send(ctx, n.UserID, n.Message); err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
	}
	return nil
}

// LogEmailSender writes emails to the log instead of delivering them.
type LogEmailSender struct{}

func (LogEmailSender) Send(ctx context.Context, userID, message string) error {
	logrus.WithField("user_id", userID).Infof("[NOTIFY] email: %s", message)
	return nil
}
