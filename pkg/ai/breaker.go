package ai

import (
	"context"
	"log"
	"time"

	"email-agent-backend/pkg/metrics"

	"github.com/sony/gobreaker"
)

// BreakerService wraps a TextGenerator with a circuit breaker. Once the
// model keeps failing, calls are rejected immediately with
// gobreaker.ErrOpenState until the open timeout elapses.
type BreakerService struct {
	next TextGenerator
	cb   *gobreaker.CircuitBreaker
}

// BreakerSettings tunes the breaker; zero values take the defaults below
type BreakerSettings struct {
	Name                string
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

func NewBreakerService(next TextGenerator, settings BreakerSettings) *BreakerService {
	if settings.Name == "" {
		settings.Name = "ai-generator"
	}
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = 5
	}
	if settings.OpenTimeout == 0 {
		settings.OpenTimeout = 30 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[AI] circuit breaker %s: state changed from %s to %s", name, from.String(), to.String())
			metrics.RecordBreakerState(name, int(to))
		},
	})

	return &BreakerService{next: next, cb: cb}
}

// GenerateContent implements TextGenerator
func (b *BreakerService) GenerateContent(ctx context.Context, prompt string) (string, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.GenerateContent(ctx, prompt)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}
