package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
)

// ErrNoProvider is returned when neither provider is configured
var ErrNoProvider = errors.New("no AI provider available")

// FallbackService implements smart AI provider routing with fallback:
// Gemini first (better quality), Ollama when Gemini fails
type FallbackService struct {
	gemini TextGenerator
	ollama TextGenerator
}

// NewFallbackService creates a new fallback service with both providers.
// Either may be nil.
func NewFallbackService(gemini, ollama TextGenerator) *FallbackService {
	return &FallbackService{
		gemini: gemini,
		ollama: ollama,
	}
}

// isConnectionError checks if the error is a network/connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	connectionIndicators := []string{
		"connection refused",
		"no such host",
		"network is unreachable",
		"connection reset",
		"timeout",
		"dial tcp",
		"eof",
	}

	for _, indicator := range connectionIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}

	return false
}

// isQuotaError checks if the error indicates API quota exhaustion (429)
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	quotaIndicators := []string{
		"429",
		"quota",
		"rate limit",
		"too many requests",
		"resource exhausted",
		"resource_exhausted",
	}

	for _, indicator := range quotaIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}

	return false
}

// GenerateContent tries Gemini first, falls back to Ollama, and gives Gemini
// one more chance when Ollama is unreachable after a quota error
func (f *FallbackService) GenerateContent(ctx context.Context, prompt string) (string, error) {
	var geminiErr error
	if f.gemini != nil {
		result, err := f.gemini.GenerateContent(ctx, prompt)
		if err == nil {
			return result, nil
		}
		geminiErr = err

		if isQuotaError(err) {
			log.Printf("[AI] Gemini quota exhausted: %v, falling back to Ollama", err)
		} else {
			log.Printf("[AI] Gemini error: %v, falling back to Ollama", err)
		}
	}

	if f.ollama != nil {
		result, err := f.ollama.GenerateContent(ctx, prompt)
		if err == nil {
			return result, nil
		}

		if isConnectionError(err) && isQuotaError(geminiErr) {
			log.Printf("[AI] Ollama connection failed: %v, retrying Gemini", err)
			return f.gemini.GenerateContent(ctx, prompt)
		}

		return "", fmt.Errorf("ollama generation failed: %w", err)
	}

	if geminiErr != nil {
		return "", fmt.Errorf("gemini generation failed: %w", geminiErr)
	}
	return "", ErrNoProvider
}
