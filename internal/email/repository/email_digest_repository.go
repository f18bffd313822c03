package repository

import (
	"errors"

	emaildomain "email-agent-backend/internal/email/domain"

	"gorm.io/gorm"
)

// EmailDigestRepository defines the interface for digest persistence
type EmailDigestRepository interface {
	// CreateWithSummaries stores the digest and all of its summaries in one transaction
	CreateWithSummaries(digest *emaildomain.EmailDigest) error
	// FindLatestByUserID returns the most recent digest, or nil when the user has none
	FindLatestByUserID(userID string) (*emaildomain.EmailDigest, error)
	// FindByUserID returns a page of digests (newest first) with summaries, plus the total count
	FindByUserID(userID string, limit, offset int) ([]*emaildomain.EmailDigest, int64, error)
	// FindByIDAndUserID returns nil, nil when the digest is absent or owned by another user
	FindByIDAndUserID(id, userID string) (*emaildomain.EmailDigest, error)
	// Delete removes the digest and its summaries; it reports whether a row was deleted
	Delete(id, userID string) (bool, error)
}

// emailDigestRepository implements EmailDigestRepository interface
type emailDigestRepository struct {
	db *gorm.DB
}

// NewEmailDigestRepository creates a new instance of emailDigestRepository
func NewEmailDigestRepository(db *gorm.DB) EmailDigestRepository {
	return &emailDigestRepository{
		db: db,
	}
}

func (r *emailDigestRepository) CreateWithSummaries(digest *emaildomain.EmailDigest) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Summaries").Create(digest).Error; err != nil {
			return err
		}
		if len(digest.Summaries) == 0 {
			return nil
		}
		for i := range digest.Summaries {
			digest.Summaries[i].DigestID = digest.ID
		}
		return tx.Create(&digest.Summaries).Error
	})
}

func (r *emailDigestRepository) FindLatestByUserID(userID string) (*emaildomain.EmailDigest, error) {
	var digest emaildomain.EmailDigest
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").First(&digest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &digest, nil
}

func (r *emailDigestRepository) FindByUserID(userID string, limit, offset int) ([]*emaildomain.EmailDigest, int64, error) {
	var digests []*emaildomain.EmailDigest
	var total int64

	if err := r.db.Model(&emaildomain.EmailDigest{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.Where("user_id = ?", userID).
		Preload("Summaries").
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&digests).Error

	return digests, total, err
}

func (r *emailDigestRepository) FindByIDAndUserID(id, userID string) (*emaildomain.EmailDigest, error) {
	var digest emaildomain.EmailDigest
	err := r.db.Preload("Summaries").Where("id = ? AND user_id = ?", id, userID).First(&digest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &digest, nil
}

func (r *emailDigestRepository) Delete(id, userID string) (bool, error) {
	deleted := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&emaildomain.EmailDigest{}).Where("id = ? AND user_id = ?", id, userID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return nil
		}
		if err := tx.Where("digest_id = ?", id).Delete(&emaildomain.EmailSummary{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&emaildomain.EmailDigest{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected > 0
		return nil
	})
	return deleted, err
}
