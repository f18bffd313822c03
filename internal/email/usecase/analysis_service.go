package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	emaildomain "email-agent-backend/internal/email/domain"
	"email-agent-backend/pkg/ai"
	"email-agent-backend/pkg/metrics"
)

// EmailAnalyzer classifies single emails and writes the digest narrative.
// Neither method returns an error: failures degrade to deterministic text.
type EmailAnalyzer interface {
	AnalyzeEmail(ctx context.Context, email emaildomain.EmailContent) emaildomain.Classification
	GenerateDigestSummary(ctx context.Context, items []emaildomain.DigestItem) string
}

type emailAnalysisService struct {
	generator ai.TextGenerator
}

// NewEmailAnalysisService creates an analyzer on top of any text generator.
// A nil generator makes every call return its fallback.
func NewEmailAnalysisService(generator ai.TextGenerator) EmailAnalyzer {
	return &emailAnalysisService{generator: generator}
}

const analysisPrompt = `
Analyze this email and provide a structured response in JSON format:

Email Subject: %s
Email Body: %s
Sender: %s

Please analyze and return ONLY valid JSON with these exact fields:
- summary: A concise 2-3 sentence summary of the email content
- category: One of: "work", "personal", "newsletter", "promotional", "social", "important", "spam", "other"
- priority: "high", "medium", or "low"
- actionRequired: boolean indicating if the email requires any action
- sentiment: "positive", "negative", or "neutral"

Be concise and accurate in your analysis. Focus on the actual content rather than assumptions.
`

const digestPrompt = `
Create a concise daily email digest summary based on these analyzed emails:

%s

Provide a well-structured digest that:
1. Starts with a brief overview of the email volume and key categories
2. Highlights high-priority emails and action items
3. Groups emails by category where appropriate
4. Ends with any important follow-ups needed

Keep it professional and easy to scan. Maximum 300 words.
`

var (
	errNoGenerator = errors.New("no text generator configured")
	errNoJSON      = errors.New("no JSON object in model response")
)

func (s *emailAnalysisService) AnalyzeEmail(ctx context.Context, email emaildomain.EmailContent) emaildomain.Classification {
	if s.generator == nil {
		metrics.RecordClassificationFallback(metrics.FallbackNoGenerator)
		return fallbackClassification(email.Subject)
	}

	prompt := fmt.Sprintf(analysisPrompt, email.Subject, email.Body, email.Sender)
	text, err := s.generator.GenerateContent(ctx, prompt)
	if err != nil {
		log.Printf("[AI] Error analyzing email %q: %v", email.Subject, err)
		metrics.RecordClassificationFallback(metrics.FallbackGenerateError)
		return fallbackClassification(email.Subject)
	}

	classification, err := parseClassification(text)
	if err != nil {
		log.Printf("[AI] Unusable analysis for email %q: %v", email.Subject, err)
		metrics.RecordClassificationFallback(metrics.FallbackUnusableOutput)
		return fallbackClassification(email.Subject)
	}
	return *classification
}

func (s *emailAnalysisService) GenerateDigestSummary(ctx context.Context, items []emaildomain.DigestItem) string {
	if s.generator == nil {
		return fallbackDigest(items)
	}

	lines := make([]string, 0, len(items))
	for i, item := range items {
		lines = append(lines, fmt.Sprintf("%d. Subject: %s\n   Summary: %s\n   Category: %s\n   Priority: %s",
			i+1, item.Subject, item.Summary, item.Category, item.Priority))
	}

	text, err := s.generator.GenerateContent(ctx, fmt.Sprintf(digestPrompt, strings.Join(lines, "\n\n")))
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("empty digest response")
	}
	if err != nil {
		log.Printf("[AI] Error generating digest summary: %v", err)
		return fallbackDigest(items)
	}
	return strings.TrimSpace(text)
}

func fallbackClassification(subject string) emaildomain.Classification {
	return emaildomain.Classification{
		Summary:        "Email about: " + subject,
		Category:       emaildomain.CategoryOther,
		Priority:       emaildomain.PriorityMedium,
		ActionRequired: false,
		Sentiment:      emaildomain.SentimentNeutral,
	}
}

func fallbackDigest(items []emaildomain.DigestItem) string {
	high := 0
	for _, item := range items {
		if item.Priority == emaildomain.PriorityHigh {
			high++
		}
	}
	return fmt.Sprintf("Digest of %d emails processed. %d require attention.", len(items), high)
}

// rawClassification uses pointers so an absent field is distinguishable from a zero value
type rawClassification struct {
	Summary        *string `json:"summary"`
	Category       *string `json:"category"`
	Priority       *string `json:"priority"`
	ActionRequired *bool   `json:"actionRequired"`
	Sentiment      *string `json:"sentiment"`
}

func parseClassification(text string) (*emaildomain.Classification, error) {
	block, ok := firstJSONObject(text)
	if !ok {
		return nil, errNoJSON
	}

	var raw rawClassification
	if err := json.Unmarshal([]byte(block), &raw); err != nil {
		return nil, fmt.Errorf("malformed JSON: %w", err)
	}
	if raw.Summary == nil || raw.Category == nil || raw.Priority == nil || raw.ActionRequired == nil || raw.Sentiment == nil {
		return nil, errors.New("missing field in analysis")
	}

	c := &emaildomain.Classification{
		Summary:        *raw.Summary,
		Category:       emaildomain.Category(strings.ToLower(strings.TrimSpace(*raw.Category))),
		Priority:       emaildomain.Priority(strings.ToLower(strings.TrimSpace(*raw.Priority))),
		ActionRequired: *raw.ActionRequired,
		Sentiment:      emaildomain.Sentiment(strings.ToLower(strings.TrimSpace(*raw.Sentiment))),
	}
	if !c.Category.Valid() {
		return nil, fmt.Errorf("unknown category %q", *raw.Category)
	}
	if !c.Priority.Valid() {
		return nil, fmt.Errorf("unknown priority %q", *raw.Priority)
	}
	if !c.Sentiment.Valid() {
		return nil, fmt.Errorf("unknown sentiment %q", *raw.Sentiment)
	}
	return c, nil
}

// firstJSONObject returns the first balanced {...} block, ignoring braces inside strings
func firstJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
