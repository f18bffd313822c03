package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	emaildomain "email-agent-backend/internal/email/domain"

	"golang.org/x/oauth2"
)

// fakeConnRepo is an in-memory GmailConnectionRepository
type fakeConnRepo struct {
	mu    sync.Mutex
	conns map[string]*emaildomain.GmailConnection
}

func newFakeConnRepo() *fakeConnRepo {
	return &fakeConnRepo{conns: map[string]*emaildomain.GmailConnection{}}
}

func (r *fakeConnRepo) Upsert(userID, accessToken, refreshToken string, expiry time.Time) (*emaildomain.GmailConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[userID]
	if !ok {
		conn = &emaildomain.GmailConnection{ID: "conn-" + userID, UserID: userID, CreatedAt: time.Now()}
		r.conns[userID] = conn
	}
	conn.AccessToken = accessToken
	conn.RefreshToken = refreshToken
	conn.ExpiryDate = expiry
	conn.Connected = true
	conn.UpdatedAt = time.Now()
	cp := *conn
	return &cp, nil
}

func (r *fakeConnRepo) FindByUserID(userID string) (*emaildomain.GmailConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[userID]
	if !ok {
		return nil, nil
	}
	cp := *conn
	return &cp, nil
}

func (r *fakeConnRepo) UpdateTokens(userID, accessToken, refreshToken string, expiry time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[userID]
	if !ok {
		return nil
	}
	conn.AccessToken = accessToken
	if refreshToken != "" {
		conn.RefreshToken = refreshToken
	}
	conn.ExpiryDate = expiry
	return nil
}

func (r *fakeConnRepo) SetConnected(userID string, connected bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn, ok := r.conns[userID]; ok {
		conn.Connected = connected
	}
	return nil
}

func (r *fakeConnRepo) FindActive() ([]*emaildomain.GmailConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*emaildomain.GmailConnection
	for _, conn := range r.conns {
		if conn.Connected {
			cp := *conn
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (r *fakeConnRepo) get(userID string) emaildomain.GmailConnection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.conns[userID]
}

// fakeDigestRepo is an in-memory EmailDigestRepository
type fakeDigestRepo struct {
	mu      sync.Mutex
	digests []*emaildomain.EmailDigest
	failErr error
}

func (r *fakeDigestRepo) CreateWithSummaries(digest *emaildomain.EmailDigest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return r.failErr
	}
	r.digests = append(r.digests, digest)
	return nil
}

func (r *fakeDigestRepo) FindLatestByUserID(userID string) (*emaildomain.EmailDigest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *emaildomain.EmailDigest
	for _, d := range r.digests {
		if d.UserID == userID && (latest == nil || d.CreatedAt.After(latest.CreatedAt)) {
			latest = d
		}
	}
	return latest, nil
}

func (r *fakeDigestRepo) FindByUserID(userID string, limit, offset int) ([]*emaildomain.EmailDigest, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var mine []*emaildomain.EmailDigest
	for _, d := range r.digests {
		if d.UserID == userID {
			mine = append(mine, d)
		}
	}
	sort.Slice(mine, func(i, j int) bool { return mine[i].CreatedAt.After(mine[j].CreatedAt) })
	total := int64(len(mine))
	if offset >= len(mine) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(mine) {
		end = len(mine)
	}
	return mine[offset:end], total, nil
}

func (r *fakeDigestRepo) FindByIDAndUserID(id, userID string) (*emaildomain.EmailDigest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.digests {
		if d.ID == id && d.UserID == userID {
			return d, nil
		}
	}
	return nil, nil
}

func (r *fakeDigestRepo) Delete(id, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, d := range r.digests {
		if d.ID == id && d.UserID == userID {
			r.digests = append(r.digests[:i], r.digests[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// fakeProvider is a scriptable MailProvider. Calls made with an access token
// listed in expired fail with ErrAuthExpired.
type fakeProvider struct {
	mu           sync.Mutex
	unread       []string
	messages     map[string]*emaildomain.ProviderEmail
	expired      map[string]bool
	failDetail   map[string]bool
	failMarkRead map[string]bool
	profileErr   error
	listErr      error

	listSince   []time.Time
	listTokens  []string
	markedRead  []string
	profileHits int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		messages:     map[string]*emaildomain.ProviderEmail{},
		expired:      map[string]bool{},
		failDetail:   map[string]bool{},
		failMarkRead: map[string]bool{},
	}
}

func (p *fakeProvider) addMessage(email *emaildomain.ProviderEmail) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unread = append(p.unread, email.ID)
	p.messages[email.ID] = email
}

func (p *fakeProvider) ListUnread(ctx context.Context, creds emaildomain.Credentials, since time.Time) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listTokens = append(p.listTokens, creds.AccessToken)
	if p.expired[creds.AccessToken] {
		return nil, emaildomain.ErrAuthExpired
	}
	if p.listErr != nil {
		return nil, p.listErr
	}
	p.listSince = append(p.listSince, since)
	return append([]string(nil), p.unread...), nil
}

func (p *fakeProvider) GetMessageDetail(ctx context.Context, creds emaildomain.Credentials, messageID string) (*emaildomain.ProviderEmail, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.expired[creds.AccessToken] {
		return nil, emaildomain.ErrAuthExpired
	}
	if p.failDetail[messageID] {
		return nil, &emaildomain.ProviderError{Op: "get message", Err: errors.New("backend error")}
	}
	email, ok := p.messages[messageID]
	if !ok {
		return nil, &emaildomain.ProviderError{Op: "get message", Err: errors.New("not found")}
	}
	cp := *email
	return &cp, nil
}

func (p *fakeProvider) MarkRead(ctx context.Context, creds emaildomain.Credentials, messageID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.expired[creds.AccessToken] {
		return emaildomain.ErrAuthExpired
	}
	if p.failMarkRead[messageID] {
		return &emaildomain.ProviderError{Op: "mark read", Err: errors.New("backend error")}
	}
	p.markedRead = append(p.markedRead, messageID)
	return nil
}

func (p *fakeProvider) GetProfile(ctx context.Context, creds emaildomain.Credentials) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profileHits++
	if p.expired[creds.AccessToken] {
		return "", emaildomain.ErrAuthExpired
	}
	if p.profileErr != nil {
		return "", p.profileErr
	}
	return "owner@example.com", nil
}

// fakeRefresher hands out numbered access tokens. When gate is set every
// exchange blocks until it is closed. A cancelled context fails the exchange.
type fakeRefresher struct {
	calls   atomic.Int32
	err     error
	rotate  string
	started chan struct{}
	gate    chan struct{}
}

func (f *fakeRefresher) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	n := f.calls.Add(1)
	if f.started != nil && n == 1 {
		close(f.started)
	}
	if f.gate != nil {
		<-f.gate
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return &oauth2.Token{
		AccessToken:  "refreshed-" + string(rune('0'+n)),
		RefreshToken: f.rotate,
		Expiry:       time.Now().Add(time.Hour),
	}, nil
}

// countingAnalyzer records every call and derives priority from the subject
type countingAnalyzer struct {
	analyzeCalls atomic.Int32
	digestCalls  atomic.Int32

	mu     sync.Mutex
	inputs []emaildomain.EmailContent
}

func (a *countingAnalyzer) AnalyzeEmail(ctx context.Context, email emaildomain.EmailContent) emaildomain.Classification {
	a.analyzeCalls.Add(1)
	a.mu.Lock()
	a.inputs = append(a.inputs, email)
	a.mu.Unlock()

	priority := emaildomain.PriorityLow
	if email.Subject == "urgent" {
		priority = emaildomain.PriorityHigh
	}
	return emaildomain.Classification{
		Summary:   "summary of " + email.Subject,
		Category:  emaildomain.CategoryWork,
		Priority:  priority,
		Sentiment: emaildomain.SentimentNeutral,
	}
}

func (a *countingAnalyzer) GenerateDigestSummary(ctx context.Context, items []emaildomain.DigestItem) string {
	a.digestCalls.Add(1)
	return fallbackDigest(items)
}

func (a *countingAnalyzer) calls() int {
	return int(a.analyzeCalls.Load() + a.digestCalls.Load())
}
