package usecase

import (
	"context"
	"time"

	emaildomain "email-agent-backend/internal/email/domain"
	"email-agent-backend/internal/email/dto"
)

// ConnectionUsecase defines the Gmail connection lifecycle
type ConnectionUsecase interface {
	Connect(ctx context.Context, userID, accessToken, refreshToken string, expiry time.Time) error
	Refresh(ctx context.Context, userID string) bool
	TestConnection(ctx context.Context, userID string) bool
	GetStatus(ctx context.Context, userID string) (*dto.ConnectionStatus, error)
	Credentials(userID string) (emaildomain.Credentials, error)
	WithCredentials(ctx context.Context, userID string, fn func(creds emaildomain.Credentials) error) error
}

// DigestUsecase defines the interface for digest use cases
type DigestUsecase interface {
	RunDigest(ctx context.Context, userID string) (*emaildomain.EmailDigest, error)
	GetDigestHistory(userID string, page, limit int) (*dto.DigestHistoryResponse, error)
	GetDigestDetails(userID, digestID string) (*emaildomain.EmailDigest, error)
	DeleteDigest(userID, digestID string) error
}
