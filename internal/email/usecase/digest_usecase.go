package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	emaildomain "email-agent-backend/internal/email/domain"
	"email-agent-backend/internal/email/dto"
	"email-agent-backend/internal/email/repository"
	"email-agent-backend/pkg/metrics"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	maxBodyRunes       = 10000
	emptyDigestSummary = "No new emails to process"
	defaultLookback    = 24 * time.Hour
	defaultConcurrency = 4
	defaultPageSize    = 10
	maxPageSize        = 100
)

// DigestConfig tunes a digest run
type DigestConfig struct {
	Lookback            time.Duration
	ClassifyConcurrency int
}

type digestUsecase struct {
	digestRepo  repository.EmailDigestRepository
	connections ConnectionUsecase
	provider    emaildomain.MailProvider
	analyzer    EmailAnalyzer
	lookback    time.Duration
	concurrency int
	now         func() time.Time
}

// NewDigestUsecase creates a new instance of digestUsecase
func NewDigestUsecase(
	digestRepo repository.EmailDigestRepository,
	connections ConnectionUsecase,
	provider emaildomain.MailProvider,
	analyzer EmailAnalyzer,
	cfg DigestConfig,
) DigestUsecase {
	if cfg.Lookback <= 0 {
		cfg.Lookback = defaultLookback
	}
	if cfg.ClassifyConcurrency <= 0 {
		cfg.ClassifyConcurrency = defaultConcurrency
	}
	return &digestUsecase{
		digestRepo:  digestRepo,
		connections: connections,
		provider:    provider,
		analyzer:    analyzer,
		lookback:    cfg.Lookback,
		concurrency: cfg.ClassifyConcurrency,
		now:         time.Now,
	}
}

// RunDigest pulls the unread mail received since the last digest, classifies
// it and stores exactly one digest. Messages are marked read only after the
// digest is persisted.
func (u *digestUsecase) RunDigest(ctx context.Context, userID string) (*emaildomain.EmailDigest, error) {
	start := time.Now()
	digest, err := u.runDigest(ctx, userID)
	if err != nil {
		metrics.RecordDigestRun(metrics.ResultFailure, time.Since(start).Seconds(), 0)
		return nil, err
	}
	metrics.RecordDigestRun(metrics.ResultSuccess, time.Since(start).Seconds(), digest.TotalEmails)
	return digest, nil
}

func (u *digestUsecase) runDigest(ctx context.Context, userID string) (*emaildomain.EmailDigest, error) {
	log.Printf("[EmailAgent] Running email digest for user: %s", userID)

	if _, err := u.connections.Credentials(userID); err != nil {
		return nil, err
	}

	since, err := u.windowStart(userID)
	if err != nil {
		return nil, err
	}

	var ids []string
	err = u.connections.WithCredentials(ctx, userID, func(creds emaildomain.Credentials) error {
		var listErr error
		ids, listErr = u.provider.ListUnread(ctx, creds, since)
		return listErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unread emails: %w", err)
	}
	log.Printf("[EmailAgent] Found %d unread emails for user %s", len(ids), userID)

	digest := &emaildomain.EmailDigest{
		ID:          uuid.New().String(),
		UserID:      userID,
		SummaryText: emptyDigestSummary,
		CreatedAt:   u.now(),
		Summaries:   []emaildomain.EmailSummary{},
	}

	if len(ids) == 0 {
		if err := u.digestRepo.CreateWithSummaries(digest); err != nil {
			return nil, fmt.Errorf("failed to save digest: %w", err)
		}
		return digest, nil
	}

	emails := u.fetchDetails(ctx, userID, ids)
	classifications := u.classify(ctx, emails)

	items := make([]emaildomain.DigestItem, 0, len(emails))
	processed := make([]string, 0, len(emails))
	for i, email := range emails {
		c := classifications[i]
		digest.Summaries = append(digest.Summaries, emaildomain.EmailSummary{
			ID:             uuid.New().String(),
			DigestID:       digest.ID,
			EmailID:        email.ID,
			SenderEmail:    email.Sender.Email,
			SenderName:     email.Sender.Name,
			Subject:        email.Subject,
			Summary:        c.Summary,
			Category:       c.Category,
			Priority:       c.Priority,
			ActionRequired: c.ActionRequired,
			Sentiment:      c.Sentiment,
		})
		items = append(items, emaildomain.DigestItem{
			Subject:  email.Subject,
			Summary:  c.Summary,
			Category: c.Category,
			Priority: c.Priority,
		})
		processed = append(processed, email.ID)
	}

	digest.TotalEmails = len(digest.Summaries)
	if len(items) > 0 {
		digest.SummaryText = u.analyzer.GenerateDigestSummary(ctx, items)
	}

	if err := u.digestRepo.CreateWithSummaries(digest); err != nil {
		return nil, fmt.Errorf("failed to save digest: %w", err)
	}

	u.markRead(ctx, userID, processed)

	log.Printf("[EmailAgent] Email digest completed for user: %s. Processed %d emails.", userID, digest.TotalEmails)
	return digest, nil
}

func (u *digestUsecase) windowStart(userID string) (time.Time, error) {
	latest, err := u.digestRepo.FindLatestByUserID(userID)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load latest digest: %w", err)
	}
	if latest != nil {
		return latest.CreatedAt, nil
	}
	return u.now().Add(-u.lookback), nil
}

// fetchDetails loads messages one at a time. A message that cannot be
// fetched is skipped with a single warning.
func (u *digestUsecase) fetchDetails(ctx context.Context, userID string, ids []string) []*emaildomain.ProviderEmail {
	emails := make([]*emaildomain.ProviderEmail, 0, len(ids))
	for _, id := range ids {
		var email *emaildomain.ProviderEmail
		err := u.connections.WithCredentials(ctx, userID, func(creds emaildomain.Credentials) error {
			var getErr error
			email, getErr = u.provider.GetMessageDetail(ctx, creds, id)
			return getErr
		})
		if err != nil || email == nil {
			log.Printf("[WARN] [EmailAgent] Failed to process message %s: %v", id, err)
			continue
		}
		emails = append(emails, email)
	}
	return emails
}

// classify runs the analyzer with bounded parallelism. Results keep the
// order of emails.
func (u *digestUsecase) classify(ctx context.Context, emails []*emaildomain.ProviderEmail) []emaildomain.Classification {
	results := make([]emaildomain.Classification, len(emails))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)
	for i, email := range emails {
		g.Go(func() error {
			results[i] = u.analyzer.AnalyzeEmail(gctx, emaildomain.EmailContent{
				Subject: email.Subject,
				Body:    truncateRunes(email.Body, maxBodyRunes),
				Sender:  senderLabel(email.Sender),
			})
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (u *digestUsecase) markRead(ctx context.Context, userID string, ids []string) {
	for _, id := range ids {
		err := u.connections.WithCredentials(ctx, userID, func(creds emaildomain.Credentials) error {
			return u.provider.MarkRead(ctx, creds, id)
		})
		if err != nil {
			log.Printf("[EmailAgent] Failed to mark email %s as read: %v", id, err)
		}
	}
}

func (u *digestUsecase) GetDigestHistory(userID string, page, limit int) (*dto.DigestHistoryResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	digests, total, err := u.digestRepo.FindByUserID(userID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	if digests == nil {
		digests = []*emaildomain.EmailDigest{}
	}

	return &dto.DigestHistoryResponse{
		Digests: digests,
		Pagination: dto.Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: int((total + int64(limit) - 1) / int64(limit)),
		},
	}, nil
}

func (u *digestUsecase) GetDigestDetails(userID, digestID string) (*emaildomain.EmailDigest, error) {
	digest, err := u.digestRepo.FindByIDAndUserID(digestID, userID)
	if err != nil {
		return nil, err
	}
	if digest == nil {
		return nil, emaildomain.ErrDigestNotFound
	}
	return digest, nil
}

func (u *digestUsecase) DeleteDigest(userID, digestID string) error {
	deleted, err := u.digestRepo.Delete(digestID, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return emaildomain.ErrDigestNotFound
	}
	return nil
}

func senderLabel(sender emaildomain.Sender) string {
	if sender.Name != "" {
		return sender.Name
	}
	return sender.Email
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
