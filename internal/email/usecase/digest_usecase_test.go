package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	emaildomain "email-agent-backend/internal/email/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)

type digestFixture struct {
	uc        *digestUsecase
	conns     *fakeConnRepo
	digests   *fakeDigestRepo
	provider  *fakeProvider
	refresher *fakeRefresher
	analyzer  *countingAnalyzer
}

func newDigestFixture(t *testing.T) *digestFixture {
	t.Helper()
	f := &digestFixture{
		conns:     newFakeConnRepo(),
		digests:   &fakeDigestRepo{},
		provider:  newFakeProvider(),
		refresher: &fakeRefresher{},
		analyzer:  &countingAnalyzer{},
	}
	connUc := NewConnectionUsecase(f.conns, f.provider, f.refresher)
	connUc.(*connectionUsecase).now = func() time.Time { return fixedNow }
	f.uc = NewDigestUsecase(f.digests, connUc, f.provider, f.analyzer, DigestConfig{ClassifyConcurrency: 3}).(*digestUsecase)
	f.uc.now = func() time.Time { return fixedNow }
	f.conns.Upsert("u1", "access", "refresh", fixedNow.Add(time.Hour))
	return f
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &buf
}

func message(id, subject string) *emaildomain.ProviderEmail {
	return &emaildomain.ProviderEmail{
		ID:      id,
		Subject: subject,
		Body:    "body of " + id,
		Sender:  emaildomain.Sender{Name: "Sender " + id, Email: id + "@example.com"},
	}
}

func TestRunDigest_RequiresConnection(t *testing.T) {
	f := newDigestFixture(t)

	_, err := f.uc.RunDigest(context.Background(), "ghost")
	assert.ErrorIs(t, err, emaildomain.ErrConnectionNotFound)

	f.conns.SetConnected("u1", false)
	_, err = f.uc.RunDigest(context.Background(), "u1")
	assert.ErrorIs(t, err, emaildomain.ErrConnectionInactive)
	assert.Empty(t, f.digests.digests)
}

func TestRunDigest_EmptyRunMakesNoAICalls(t *testing.T) {
	f := newDigestFixture(t)

	digest, err := f.uc.RunDigest(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 0, digest.TotalEmails)
	assert.Equal(t, "No new emails to process", digest.SummaryText)
	assert.Empty(t, digest.Summaries)
	assert.Equal(t, 0, f.analyzer.calls())
	require.Len(t, f.digests.digests, 1, "an empty run still records a digest")
	assert.Equal(t, []time.Time{fixedNow.Add(-24 * time.Hour)}, f.provider.listSince)
}

func TestRunDigest_WindowStartsAtLatestDigest(t *testing.T) {
	f := newDigestFixture(t)
	last := fixedNow.Add(-3 * time.Hour)
	f.digests.digests = append(f.digests.digests,
		&emaildomain.EmailDigest{ID: "old", UserID: "u1", CreatedAt: fixedNow.Add(-10 * time.Hour)},
		&emaildomain.EmailDigest{ID: "last", UserID: "u1", CreatedAt: last},
		&emaildomain.EmailDigest{ID: "other", UserID: "u2", CreatedAt: fixedNow.Add(-time.Minute)},
	)

	_, err := f.uc.RunDigest(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []time.Time{last}, f.provider.listSince)
}

func TestRunDigest_ClassifiesPersistsThenMarksRead(t *testing.T) {
	f := newDigestFixture(t)
	for i := 1; i <= 5; i++ {
		subject := fmt.Sprintf("subject %d", i)
		if i == 2 {
			subject = "urgent"
		}
		f.provider.addMessage(message(fmt.Sprintf("m%d", i), subject))
	}

	digest, err := f.uc.RunDigest(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 5, digest.TotalEmails)
	require.Len(t, digest.Summaries, digest.TotalEmails)
	for i, s := range digest.Summaries {
		assert.Equal(t, fmt.Sprintf("m%d", i+1), s.EmailID, "summaries keep fetch order")
		assert.Equal(t, digest.ID, s.DigestID)
		assert.Equal(t, "summary of "+s.Subject, s.Summary)
	}
	assert.Equal(t, "Sender m1", digest.Summaries[0].SenderName)
	assert.Equal(t, "m1@example.com", digest.Summaries[0].SenderEmail)
	assert.Equal(t, emaildomain.PriorityHigh, digest.Summaries[1].Priority)
	assert.Equal(t, "Digest of 5 emails processed. 1 require attention.", digest.SummaryText)

	assert.EqualValues(t, 5, f.analyzer.analyzeCalls.Load())
	assert.EqualValues(t, 1, f.analyzer.digestCalls.Load())
	assert.Equal(t, []string{"m1", "m2", "m3", "m4", "m5"}, f.provider.markedRead)
	require.Len(t, f.digests.digests, 1)
}

func TestRunDigest_SkipsFailedFetchWithOneWarning(t *testing.T) {
	f := newDigestFixture(t)
	for i := 1; i <= 5; i++ {
		f.provider.addMessage(message(fmt.Sprintf("m%d", i), fmt.Sprintf("subject %d", i)))
	}
	f.provider.failDetail["m3"] = true
	logs := captureLog(t)

	digest, err := f.uc.RunDigest(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 4, digest.TotalEmails)
	assert.Len(t, digest.Summaries, 4)
	assert.Equal(t, 1, strings.Count(logs.String(), "[WARN]"))
	assert.Contains(t, logs.String(), "m3")
	assert.Equal(t, []string{"m1", "m2", "m4", "m5"}, f.provider.markedRead, "the skipped message stays unread")
}

func TestRunDigest_MarkReadFailureDoesNotBlockOthers(t *testing.T) {
	f := newDigestFixture(t)
	for i := 1; i <= 3; i++ {
		f.provider.addMessage(message(fmt.Sprintf("m%d", i), "s"))
	}
	f.provider.failMarkRead["m1"] = true

	digest, err := f.uc.RunDigest(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 3, digest.TotalEmails)
	assert.Equal(t, []string{"m2", "m3"}, f.provider.markedRead)
	require.Len(t, f.digests.digests, 1, "digest is kept despite mark-read failures")
}

func TestRunDigest_PersistFailureLeavesMessagesUnread(t *testing.T) {
	f := newDigestFixture(t)
	f.provider.addMessage(message("m1", "s"))
	f.digests.failErr = errors.New("db down")

	_, err := f.uc.RunDigest(context.Background(), "u1")
	require.Error(t, err)
	assert.Empty(t, f.provider.markedRead)
}

func TestRunDigest_RefreshesOnAuthExpiry(t *testing.T) {
	f := newDigestFixture(t)
	f.provider.addMessage(message("m1", "s"))
	f.provider.expired["access"] = true

	digest, err := f.uc.RunDigest(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 1, digest.TotalEmails)
	assert.Equal(t, []string{"access", "refreshed-1"}, f.provider.listTokens)
	assert.EqualValues(t, 1, f.refresher.calls.Load())
	assert.Equal(t, []string{"m1"}, f.provider.markedRead)
}

func TestRunDigest_FailsWhenRefreshFails(t *testing.T) {
	f := newDigestFixture(t)
	f.provider.expired["access"] = true
	f.refresher.err = errors.New("invalid_grant")

	_, err := f.uc.RunDigest(context.Background(), "u1")
	assert.ErrorIs(t, err, emaildomain.ErrAuthExpired)
	assert.False(t, f.conns.get("u1").Connected)
	assert.Empty(t, f.digests.digests)
}

func TestRunDigest_ListFailureFailsRun(t *testing.T) {
	f := newDigestFixture(t)
	f.provider.listErr = &emaildomain.ProviderError{Op: "list", Err: errors.New("503")}

	_, err := f.uc.RunDigest(context.Background(), "u1")
	var provErr *emaildomain.ProviderError
	assert.ErrorAs(t, err, &provErr)
	assert.Empty(t, f.digests.digests)
}

func TestRunDigest_TruncatesBodyAndPicksSenderLabel(t *testing.T) {
	f := newDigestFixture(t)
	long := message("m1", "s")
	long.Body = strings.Repeat("é", maxBodyRunes+50)
	anonymous := message("m2", "s")
	anonymous.Sender = emaildomain.Sender{Email: "noreply@example.com"}
	f.provider.addMessage(long)
	f.provider.addMessage(anonymous)

	_, err := f.uc.RunDigest(context.Background(), "u1")
	require.NoError(t, err)

	labels := map[string]int{}
	for _, in := range f.analyzer.inputs {
		labels[in.Sender] = len([]rune(in.Body))
	}
	assert.Equal(t, maxBodyRunes, labels["Sender m1"])
	assert.Contains(t, labels, "noreply@example.com")
}

func TestGetDigestHistory(t *testing.T) {
	f := newDigestFixture(t)
	for i := 0; i < 25; i++ {
		f.digests.digests = append(f.digests.digests, &emaildomain.EmailDigest{
			ID: fmt.Sprintf("d%d", i), UserID: "u1", CreatedAt: fixedNow.Add(time.Duration(i) * time.Minute),
		})
	}

	resp, err := f.uc.GetDigestHistory("u1", 3, 10)
	require.NoError(t, err)
	assert.Len(t, resp.Digests, 5)
	assert.EqualValues(t, 25, resp.Pagination.Total)
	assert.Equal(t, 3, resp.Pagination.Pages)
	assert.Equal(t, 3, resp.Pagination.Page)

	resp, err = f.uc.GetDigestHistory("u1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Pagination.Page)
	assert.Equal(t, 10, resp.Pagination.Limit)
	assert.Equal(t, "d24", resp.Digests[0].ID, "newest first")

	resp, err = f.uc.GetDigestHistory("nobody", 1, 10)
	require.NoError(t, err)
	assert.NotNil(t, resp.Digests)
	assert.Equal(t, 0, resp.Pagination.Pages)
}

func TestGetAndDeleteDigest_CheckOwnership(t *testing.T) {
	f := newDigestFixture(t)
	f.digests.digests = append(f.digests.digests, &emaildomain.EmailDigest{ID: "d1", UserID: "u1", CreatedAt: fixedNow})

	_, err := f.uc.GetDigestDetails("u2", "d1")
	assert.ErrorIs(t, err, emaildomain.ErrDigestNotFound)
	assert.ErrorIs(t, f.uc.DeleteDigest("u2", "d1"), emaildomain.ErrDigestNotFound)

	digest, err := f.uc.GetDigestDetails("u1", "d1")
	require.NoError(t, err)
	assert.Equal(t, "d1", digest.ID)

	require.NoError(t, f.uc.DeleteDigest("u1", "d1"))
	_, err = f.uc.GetDigestDetails("u1", "d1")
	assert.ErrorIs(t, err, emaildomain.ErrDigestNotFound)
}
