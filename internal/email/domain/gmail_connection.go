package domain

import "time"

// GmailConnection stores the OAuth credentials linking a user to their Gmail account.
// Connected=false is a soft-disable; rows are never deleted automatically.
type GmailConnection struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	UserID       string    `json:"user_id" gorm:"uniqueIndex;not null"`
	AccessToken  string    `json:"-" gorm:"type:text;not null"`
	RefreshToken string    `json:"-" gorm:"type:text"`
	ExpiryDate   time.Time `json:"expiry_date"`
	Connected    bool      `json:"connected" gorm:"not null;default:false;index"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (GmailConnection) TableName() string {
	return "gmail_connections"
}

// Credentials returns the token set used for provider calls
func (c *GmailConnection) Credentials() Credentials {
	return Credentials{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		Expiry:       c.ExpiryDate,
	}
}

// Credentials is the token set passed to every provider call
type Credentials struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Expired reports whether the access token is past its expiry at the given time.
// A zero expiry is treated as unknown, not expired.
func (c Credentials) Expired(now time.Time) bool {
	if c.Expiry.IsZero() {
		return false
	}
	return !now.Before(c.Expiry)
}
