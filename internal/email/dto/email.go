package dto

import (
	"time"

	emaildomain "email-agent-backend/internal/email/domain"
)

// ConnectGmailRequest carries tokens obtained by a client-side OAuth flow
type ConnectGmailRequest struct {
	AccessToken  string    `json:"access_token" binding:"required"`
	RefreshToken string    `json:"refresh_token" binding:"required"`
	ExpiryDate   time.Time `json:"expiry_date"`
}

type ConnectGmailResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ConnectionStatus struct {
	Connected     bool       `json:"connected"`
	LastConnected *time.Time `json:"last_connected,omitempty"`
	Message       string     `json:"message"`
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

type DigestHistoryResponse struct {
	Digests    []*emaildomain.EmailDigest `json:"digests"`
	Pagination Pagination                 `json:"pagination"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
