package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	emaildomain "email-agent-backend/internal/email/domain"
	"email-agent-backend/internal/email/dto"
	"email-agent-backend/internal/email/repository"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const refreshTimeout = 30 * time.Second

// TokenRefresher performs the refresh_token grant. A rotated refresh token
// is returned in the token; an empty RefreshToken means no rotation.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

type connectionUsecase struct {
	connRepo  repository.GmailConnectionRepository
	provider  emaildomain.MailProvider
	refresher TokenRefresher
	refreshes singleflight.Group
	now       func() time.Time
}

// NewConnectionUsecase creates a new instance of connectionUsecase
func NewConnectionUsecase(connRepo repository.GmailConnectionRepository, provider emaildomain.MailProvider, refresher TokenRefresher) ConnectionUsecase {
	return &connectionUsecase{
		connRepo:  connRepo,
		provider:  provider,
		refresher: refresher,
		now:       time.Now,
	}
}

// Connect stores first, then verifies. A failed verification leaves the
// record in place and surfaces a ConnectionError.
func (u *connectionUsecase) Connect(ctx context.Context, userID, accessToken, refreshToken string, expiry time.Time) error {
	conn, err := u.connRepo.Upsert(userID, accessToken, refreshToken, expiry)
	if err != nil {
		return fmt.Errorf("failed to store gmail connection: %w", err)
	}

	if _, err := u.provider.GetProfile(ctx, conn.Credentials()); err != nil {
		log.Printf("[Connection] Verification failed for user %s: %v", userID, err)
		return &emaildomain.ConnectionError{UserID: userID, Err: err}
	}

	log.Printf("[Connection] Gmail connected for user %s", userID)
	return nil
}

// Refresh exchanges the stored refresh token. It is the only place a
// connection is marked disconnected. Concurrent calls for one user share a
// single exchange.
func (u *connectionUsecase) Refresh(ctx context.Context, userID string) bool {
	v, _, _ := u.refreshes.Do(userID, func() (interface{}, error) {
		// The exchange is shared, so one caller giving up must not disconnect the user
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return u.refresh(refreshCtx, userID), nil
	})
	return v.(bool)
}

func (u *connectionUsecase) refresh(ctx context.Context, userID string) bool {
	conn, err := u.connRepo.FindByUserID(userID)
	if err != nil {
		log.Printf("[Connection] Failed to load connection for user %s: %v", userID, err)
		return false
	}
	if conn == nil {
		return false
	}

	token, err := u.refresher.RefreshToken(ctx, conn.RefreshToken)
	if err != nil {
		log.Printf("[Connection] Failed to refresh token for user %s: %v", userID, err)
		if err := u.connRepo.SetConnected(userID, false); err != nil {
			log.Printf("[Connection] Failed to mark user %s disconnected: %v", userID, err)
		}
		return false
	}

	if err := u.connRepo.UpdateTokens(userID, token.AccessToken, token.RefreshToken, token.Expiry); err != nil {
		log.Printf("[Connection] Failed to persist refreshed token for user %s: %v", userID, err)
		return false
	}

	log.Printf("[Connection] Access token refreshed for user %s", userID)
	return true
}

// TestConnection probes the mailbox with the stored credentials. It never
// changes the connection state.
func (u *connectionUsecase) TestConnection(ctx context.Context, userID string) bool {
	conn, err := u.connRepo.FindByUserID(userID)
	if err != nil || conn == nil {
		return false
	}
	if _, err := u.provider.GetProfile(ctx, conn.Credentials()); err != nil {
		log.Printf("[Connection] Liveness test failed for user %s: %v", userID, err)
		return false
	}
	return true
}

func (u *connectionUsecase) GetStatus(ctx context.Context, userID string) (*dto.ConnectionStatus, error) {
	conn, err := u.connRepo.FindByUserID(userID)
	if err != nil {
		return nil, err
	}
	if conn == nil || !conn.Connected {
		return &dto.ConnectionStatus{
			Connected: false,
			Message:   "No Gmail account connected.",
		}, nil
	}

	lastConnected := conn.UpdatedAt
	active := u.TestConnection(ctx, userID)
	if !active {
		if err := u.connRepo.SetConnected(userID, false); err != nil {
			return nil, err
		}
		return &dto.ConnectionStatus{
			Connected:     false,
			LastConnected: &lastConnected,
			Message:       "Gmail account connection is inactive.",
		}, nil
	}

	return &dto.ConnectionStatus{
		Connected:     true,
		LastConnected: &lastConnected,
		Message:       "Gmail account is connected and active.",
	}, nil
}

func (u *connectionUsecase) Credentials(userID string) (emaildomain.Credentials, error) {
	conn, err := u.connRepo.FindByUserID(userID)
	if err != nil {
		return emaildomain.Credentials{}, err
	}
	if conn == nil {
		return emaildomain.Credentials{}, emaildomain.ErrConnectionNotFound
	}
	if !conn.Connected {
		return emaildomain.Credentials{}, emaildomain.ErrConnectionInactive
	}
	return conn.Credentials(), nil
}

// WithCredentials runs fn with usable credentials. Expired tokens are
// refreshed up front; an ErrAuthExpired from fn triggers one refresh and
// exactly one retry.
func (u *connectionUsecase) WithCredentials(ctx context.Context, userID string, fn func(creds emaildomain.Credentials) error) error {
	creds, err := u.Credentials(userID)
	if err != nil {
		return err
	}

	if creds.Expired(u.now()) && creds.RefreshToken != "" {
		if creds, err = u.refreshAndReload(ctx, userID); err != nil {
			return err
		}
	}

	err = fn(creds)
	if !errors.Is(err, emaildomain.ErrAuthExpired) {
		return err
	}

	if creds, err = u.refreshAndReload(ctx, userID); err != nil {
		return err
	}
	return fn(creds)
}

func (u *connectionUsecase) refreshAndReload(ctx context.Context, userID string) (emaildomain.Credentials, error) {
	if !u.Refresh(ctx, userID) {
		return emaildomain.Credentials{}, emaildomain.ErrAuthExpired
	}
	return u.Credentials(userID)
}
