package domain

import "time"

// EmailDigest is one batch summary of a user's unread mail, produced per run
type EmailDigest struct {
	ID          string         `json:"id" gorm:"primaryKey"`
	UserID      string         `json:"user_id" gorm:"index:idx_digest_user_created;not null"`
	TotalEmails int            `json:"total_emails" gorm:"not null;default:0"`
	SummaryText string         `json:"summary_text" gorm:"type:text"`
	CreatedAt   time.Time      `json:"created_at" gorm:"index:idx_digest_user_created"`
	Summaries   []EmailSummary `json:"summaries" gorm:"foreignKey:DigestID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for GORM
func (EmailDigest) TableName() string {
	return "email_digests"
}

// EmailSummary stores the AI classification of one email inside a digest
type EmailSummary struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	DigestID       string    `json:"digest_id" gorm:"index;not null"`
	EmailID        string    `json:"email_id" gorm:"not null"`
	SenderEmail    string    `json:"sender_email"`
	SenderName     string    `json:"sender_name"`
	Subject        string    `json:"subject"`
	Summary        string    `json:"summary" gorm:"type:text"`
	Category       Category  `json:"category" gorm:"type:varchar(32);not null"`
	Priority       Priority  `json:"priority" gorm:"type:varchar(16);not null"`
	ActionRequired bool      `json:"action_required" gorm:"not null;default:false"`
	Sentiment      Sentiment `json:"sentiment" gorm:"type:varchar(16);not null"`
}

// TableName specifies the table name for GORM
func (EmailSummary) TableName() string {
	return "email_summaries"
}
