package scheduler

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	emaildomain "email-agent-backend/internal/email/domain"
	"email-agent-backend/pkg/metrics"
)

// ConnectionLister returns the connections eligible for a scheduled run
type ConnectionLister interface {
	FindActive() ([]*emaildomain.GmailConnection, error)
}

// DigestRunner runs one digest for one user
type DigestRunner interface {
	RunDigest(ctx context.Context, userID string) (*emaildomain.EmailDigest, error)
}

// Notifier is told about every scheduled digest that contains emails
type Notifier interface {
	NotifyDigestReady(ctx context.Context, userID string, digest *emaildomain.EmailDigest) error
}

// clock is a time of day in the scheduler location
type clock struct {
	hour, minute int
}

// DigestScheduler runs digests for every connected user at fixed wall-clock times
type DigestScheduler struct {
	connections ConnectionLister
	digests     DigestRunner
	notifier    Notifier
	times       []clock
	location    *time.Location
	now         func() time.Time
	stopChan    chan struct{}
	stopOnce    sync.Once
	started     atomic.Bool
	done        chan struct{}
}

// NewDigestScheduler parses "HH:MM" entries in the server's local timezone.
// notifier may be nil.
func NewDigestScheduler(connections ConnectionLister, digests DigestRunner, notifier Notifier, schedule []string) (*DigestScheduler, error) {
	times, err := parseSchedule(schedule)
	if err != nil {
		return nil, err
	}
	return &DigestScheduler{
		connections: connections,
		digests:     digests,
		notifier:    notifier,
		times:       times,
		location:    time.Local,
		now:         time.Now,
		stopChan:    make(chan struct{}),
		done:        make(chan struct{}),
	}, nil
}

func parseSchedule(schedule []string) ([]clock, error) {
	if len(schedule) == 0 {
		return nil, fmt.Errorf("digest schedule is empty")
	}
	seen := make(map[clock]bool)
	var times []clock
	for _, entry := range schedule {
		t, err := time.Parse("15:04", entry)
		if err != nil {
			return nil, fmt.Errorf("invalid schedule time %q: %w", entry, err)
		}
		c := clock{hour: t.Hour(), minute: t.Minute()}
		if !seen[c] {
			seen[c] = true
			times = append(times, c)
		}
	}
	sort.Slice(times, func(i, j int) bool {
		if times[i].hour != times[j].hour {
			return times[i].hour < times[j].hour
		}
		return times[i].minute < times[j].minute
	})
	return times, nil
}

// nextRun returns the first scheduled instant strictly after now
func (s *DigestScheduler) nextRun(now time.Time) time.Time {
	local := now.In(s.location)
	year, month, day := local.Date()
	for offset := 0; offset < 2; offset++ {
		for _, c := range s.times {
			candidate := time.Date(year, month, day+offset, c.hour, c.minute, 0, 0, s.location)
			if candidate.After(local) {
				return candidate
			}
		}
	}
	// Unreachable with a non-empty schedule
	return local.Add(24 * time.Hour)
}

// Start begins the scheduler loop
func (s *DigestScheduler) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	log.Printf("[DigestScheduler] Starting digest scheduler (%d runs per day)", len(s.times))

	go func() {
		defer close(s.done)
		for {
			next := s.nextRun(s.now())
			log.Printf("[DigestScheduler] Next run at %s", next.Format(time.RFC3339))
			timer := time.NewTimer(time.Until(next))

			select {
			case <-timer.C:
				s.RunOnce(ctx)
			case <-s.stopChan:
				timer.Stop()
				log.Println("[DigestScheduler] Scheduler stopped")
				return
			case <-ctx.Done():
				timer.Stop()
				log.Println("[DigestScheduler] Scheduler stopped")
				return
			}
		}
	}()
}

// Stop ends the loop and waits for an in-flight run to finish
func (s *DigestScheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	if s.started.Load() {
		<-s.done
	}
}

// RunOnce runs a digest for every connected user, one at a time, and
// returns how many succeeded. One user's failure does not stop the rest.
func (s *DigestScheduler) RunOnce(ctx context.Context) int {
	conns, err := s.connections.FindActive()
	if err != nil {
		log.Printf("[DigestScheduler] Error loading active connections: %v", err)
		return 0
	}

	log.Printf("[DigestScheduler] Running digests for %d connected users", len(conns))
	metrics.RecordSchedulerPass()
	succeeded := 0
	for _, conn := range conns {
		if ctx.Err() != nil {
			log.Printf("[DigestScheduler] Run cancelled: %v", ctx.Err())
			break
		}

		digest, err := s.digests.RunDigest(ctx, conn.UserID)
		if err != nil {
			log.Printf("[DigestScheduler] Digest failed for user %s: %v", conn.UserID, err)
			continue
		}
		succeeded++

		if s.notifier != nil && digest.TotalEmails > 0 {
			if err := s.notifier.NotifyDigestReady(ctx, conn.UserID, digest); err != nil {
				log.Printf("[DigestScheduler] Failed to notify user %s: %v", conn.UserID, err)
			}
		}
	}

	log.Printf("[DigestScheduler] Run complete: %d/%d succeeded", succeeded, len(conns))
	return succeeded
}
