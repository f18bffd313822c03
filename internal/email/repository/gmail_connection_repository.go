package repository

import (
	"errors"
	"fmt"
	"time"

	emaildomain "email-agent-backend/internal/email/domain"
	"email-agent-backend/pkg/utils/crypto"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GmailConnectionRepository defines the interface for Gmail connection operations
type GmailConnectionRepository interface {
	// Upsert creates or replaces the user's connection and marks it connected
	Upsert(userID, accessToken, refreshToken string, expiry time.Time) (*emaildomain.GmailConnection, error)
	// FindByUserID returns nil, nil when the user never connected
	FindByUserID(userID string) (*emaildomain.GmailConnection, error)
	// UpdateTokens stores a refreshed token set; an empty refreshToken keeps the stored one
	UpdateTokens(userID, accessToken, refreshToken string, expiry time.Time) error
	SetConnected(userID string, connected bool) error
	// FindActive returns every connection with connected=true
	FindActive() ([]*emaildomain.GmailConnection, error)
}

// gmailConnectionRepository implements GmailConnectionRepository; tokens are encrypted at rest
type gmailConnectionRepository struct {
	db            *gorm.DB
	encryptionKey string
}

// NewGmailConnectionRepository creates a new instance of gmailConnectionRepository
func NewGmailConnectionRepository(db *gorm.DB, encryptionKey string) GmailConnectionRepository {
	return &gmailConnectionRepository{
		db:            db,
		encryptionKey: encryptionKey,
	}
}

func (r *gmailConnectionRepository) Upsert(userID, accessToken, refreshToken string, expiry time.Time) (*emaildomain.GmailConnection, error) {
	encAccess, err := crypto.Encrypt(accessToken, r.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}
	encRefresh, err := crypto.Encrypt(refreshToken, r.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	now := time.Now()
	conn := &emaildomain.GmailConnection{
		ID:           uuid.New().String(),
		UserID:       userID,
		AccessToken:  encAccess,
		RefreshToken: encRefresh,
		ExpiryDate:   expiry,
		Connected:    true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// Atomic upsert: INSERT ... ON CONFLICT (user_id) DO UPDATE
	err = r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "refresh_token", "expiry_date", "connected", "updated_at"}),
	}).Create(conn).Error
	if err != nil {
		return nil, err
	}

	return r.FindByUserID(userID)
}

func (r *gmailConnectionRepository) FindByUserID(userID string) (*emaildomain.GmailConnection, error) {
	var conn emaildomain.GmailConnection
	err := r.db.Where("user_id = ?", userID).First(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if err := r.decrypt(&conn); err != nil {
		return nil, err
	}
	return &conn, nil
}

func (r *gmailConnectionRepository) UpdateTokens(userID, accessToken, refreshToken string, expiry time.Time) error {
	encAccess, err := crypto.Encrypt(accessToken, r.encryptionKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}

	updates := map[string]interface{}{
		"access_token": encAccess,
		"expiry_date":  expiry,
		"updated_at":   time.Now(),
	}
	if refreshToken != "" {
		encRefresh, err := crypto.Encrypt(refreshToken, r.encryptionKey)
		if err != nil {
			return fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
		updates["refresh_token"] = encRefresh
	}

	return r.db.Model(&emaildomain.GmailConnection{}).Where("user_id = ?", userID).Updates(updates).Error
}

func (r *gmailConnectionRepository) SetConnected(userID string, connected bool) error {
	return r.db.Model(&emaildomain.GmailConnection{}).Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"connected":  connected,
			"updated_at": time.Now(),
		}).Error
}

func (r *gmailConnectionRepository) FindActive() ([]*emaildomain.GmailConnection, error) {
	var conns []*emaildomain.GmailConnection
	if err := r.db.Where("connected = ?", true).Order("created_at ASC").Find(&conns).Error; err != nil {
		return nil, err
	}
	for _, conn := range conns {
		if err := r.decrypt(conn); err != nil {
			return nil, err
		}
	}
	return conns, nil
}

func (r *gmailConnectionRepository) decrypt(conn *emaildomain.GmailConnection) error {
	access, err := crypto.Decrypt(conn.AccessToken, r.encryptionKey)
	if err != nil {
		return fmt.Errorf("failed to decrypt access token for user %s: %w", conn.UserID, err)
	}
	refresh, err := crypto.Decrypt(conn.RefreshToken, r.encryptionKey)
	if err != nil {
		return fmt.Errorf("failed to decrypt refresh token for user %s: %w", conn.UserID, err)
	}
	conn.AccessToken = access
	conn.RefreshToken = refresh
	return nil
}
