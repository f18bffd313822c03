package gmail

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	emaildomain "email-agent-backend/internal/email/domain"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	user = "me"
	// unreadPageSize caps one ListUnread call. Messages past the cap are not
	// returned, and since the next window starts at this digest they may never be.
	unreadPageSize = 50
)

// Service is a stateless Gmail API client. Every call builds its own
// gmail.Service around the credentials it was given.
type Service struct {
	endpoint   string
	httpClient *http.Client
}

var _ emaildomain.MailProvider = (*Service)(nil)

func NewService() *Service {
	return &Service{}
}

// NewServiceWithEndpoint points the client at a different API root
func NewServiceWithEndpoint(endpoint string, httpClient *http.Client) *Service {
	return &Service{
		endpoint:   endpoint,
		httpClient: httpClient,
	}
}

// GetGmailService creates Gmail service with user's access token.
// The token source is static: a call never rotates credentials behind the caller's back.
func (s *Service) GetGmailService(ctx context.Context, creds emaildomain.Credentials) (*gmail.Service, error) {
	token := &oauth2.Token{
		AccessToken: creds.AccessToken,
		TokenType:   "Bearer",
	}

	if s.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint))
	}

	srv, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %v", err)
	}

	return srv, nil
}

// ListUnread returns the ids of unread messages received after since
func (s *Service) ListUnread(ctx context.Context, creds emaildomain.Credentials, since time.Time) ([]string, error) {
	srv, err := s.GetGmailService(ctx, creds)
	if err != nil {
		return nil, &emaildomain.ProviderError{Op: "list", Err: err}
	}

	q := "is:unread"
	if !since.IsZero() {
		q += fmt.Sprintf(" after:%d", since.Unix())
	}

	resp, err := srv.Users.Messages.List(user).Q(q).MaxResults(unreadPageSize).Context(ctx).Do()
	if err != nil {
		return nil, classifyError("list", err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		ids = append(ids, msg.Id)
	}
	return ids, nil
}

// GetMessageDetail fetches one message in full format and normalizes it
func (s *Service) GetMessageDetail(ctx context.Context, creds emaildomain.Credentials, messageID string) (*emaildomain.ProviderEmail, error) {
	srv, err := s.GetGmailService(ctx, creds)
	if err != nil {
		return nil, &emaildomain.ProviderError{Op: "get message", Err: err}
	}

	msg, err := srv.Users.Messages.Get(user, messageID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, classifyError("get message", err)
	}

	return convertGmailMessage(msg), nil
}

// MarkRead removes the UNREAD label. Repeating it is harmless.
func (s *Service) MarkRead(ctx context.Context, creds emaildomain.Credentials, messageID string) error {
	srv, err := s.GetGmailService(ctx, creds)
	if err != nil {
		return &emaildomain.ProviderError{Op: "mark read", Err: err}
	}

	modifyReq := &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}

	if _, err := srv.Users.Messages.Modify(user, messageID, modifyReq).Context(ctx).Do(); err != nil {
		return classifyError("mark read", err)
	}

	return nil
}

// GetProfile validates the access token by making a simple API call
func (s *Service) GetProfile(ctx context.Context, creds emaildomain.Credentials) (string, error) {
	srv, err := s.GetGmailService(ctx, creds)
	if err != nil {
		return "", &emaildomain.ProviderError{Op: "get profile", Err: err}
	}

	profile, err := srv.Users.GetProfile(user).Context(ctx).Do()
	if err != nil {
		return "", classifyError("get profile", err)
	}

	return profile.EmailAddress, nil
}

func classifyError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
		return emaildomain.ErrAuthExpired
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil && retrieveErr.Response.StatusCode == http.StatusUnauthorized {
		return emaildomain.ErrAuthExpired
	}
	log.Printf("[Gmail] %s failed: %v", op, err)
	return &emaildomain.ProviderError{Op: op, Err: err}
}

func convertGmailMessage(msg *gmail.Message) *emaildomain.ProviderEmail {
	var headers []*gmail.MessagePartHeader
	if msg.Payload != nil {
		headers = msg.Payload.Headers
	}

	subject := getHeader(headers, "Subject")
	if subject == "" {
		subject = "No Subject"
	}

	return &emaildomain.ProviderEmail{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Subject:  subject,
		Body:     extractBody(msg.Payload),
		Sender:   parseSender(getHeader(headers, "From")),
		Date:     getHeader(headers, "Date"),
	}
}
