package notification

import (
	"context"
	"fmt"
	"log"
	"strings"

	authrepo "email-agent-backend/internal/auth/repository"
	emaildomain "email-agent-backend/internal/email/domain"
	"email-agent-backend/pkg/fcm"
	"email-agent-backend/pkg/metrics"
)

// PushSender delivers a notification to a set of device tokens and
// returns the tokens that should be pruned.
type PushSender interface {
	SendToDevices(ctx context.Context, tokens []string, notification fcm.NotificationData) ([]string, error)
}

// Service pushes "digest ready" notifications to a user's registered devices
type Service struct {
	fcmRepo     authrepo.FCMTokenRepository
	sender      PushSender
	frontendURL string
}

func NewService(fcmRepo authrepo.FCMTokenRepository, sender PushSender, frontendURL string) *Service {
	return &Service{
		fcmRepo:     fcmRepo,
		sender:      sender,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// NotifyDigestReady is a no-op for users without registered devices
func (s *Service) NotifyDigestReady(ctx context.Context, userID string, digest *emaildomain.EmailDigest) error {
	tokens, err := s.fcmRepo.GetTokensByUserID(userID)
	if err != nil {
		return fmt.Errorf("failed to load FCM tokens: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}

	invalid, err := s.sender.SendToDevices(ctx, tokens, s.buildNotification(digest))
	if err != nil {
		return err
	}

	if len(invalid) > 0 {
		log.Printf("[FCM] Pruning %d invalid tokens for user %s", len(invalid), userID)
		if err := s.fcmRepo.DeleteTokens(invalid); err != nil {
			log.Printf("[FCM] Failed to prune tokens for user %s: %v", userID, err)
		} else {
			metrics.RecordPrunedTokens(len(invalid))
		}
	}
	return nil
}

func (s *Service) buildNotification(digest *emaildomain.EmailDigest) fcm.NotificationData {
	noun := "emails"
	if digest.TotalEmails == 1 {
		noun = "email"
	}
	return fcm.NotificationData{
		Title: "Your email digest is ready",
		Body:  fmt.Sprintf("%d new %s summarized", digest.TotalEmails, noun),
		Data: map[string]string{
			"type":      "digest_ready",
			"digest_id": digest.ID,
		},
		ClickAction: s.frontendURL + "/digests/" + digest.ID,
	}
}
