package domain

import (
	"context"
	"time"
)

// Sender is the parsed From header of a message
type Sender struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ProviderEmail is the normalized message produced from raw provider data. It is never persisted.
type ProviderEmail struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	Sender   Sender `json:"sender"`
	Date     string `json:"date"`
}

// MailProvider is the set of mail provider calls the digest pipeline needs.
// Implementations are stateless: credentials travel with every call.
type MailProvider interface {
	// ListUnread returns at most one page of unread message ids received after since.
	// A zero since means no lower bound.
	ListUnread(ctx context.Context, creds Credentials, since time.Time) ([]string, error)
	GetMessageDetail(ctx context.Context, creds Credentials, messageID string) (*ProviderEmail, error)
	MarkRead(ctx context.Context, creds Credentials, messageID string) error
	// GetProfile is the cheap liveness probe; it returns the mailbox address.
	GetProfile(ctx context.Context, creds Credentials) (string, error)
}
