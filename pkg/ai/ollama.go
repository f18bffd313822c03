package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "llama3"
)

// OllamaService implements TextGenerator using Ollama local LLM
type OllamaService struct {
	getBaseURL func() string // Dynamic getter for BaseURL
	getModel   func() string // Dynamic getter for Model
	httpClient *http.Client
}

// NewOllamaService creates a new Ollama service
func NewOllamaService(baseURL, model string) *OllamaService {
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	if model == "" {
		model = defaultOllamaModel
	}
	return &OllamaService{
		getBaseURL: func() string { return baseURL },
		getModel:   func() string { return model },
		httpClient: http.DefaultClient,
	}
}

// NewOllamaServiceWithGetters creates a new Ollama service with dynamic getters
// so the settings API can repoint it without a restart
func NewOllamaServiceWithGetters(getBaseURL, getModel func() string) *OllamaService {
	return &OllamaService{
		getBaseURL: getBaseURL,
		getModel:   getModel,
		httpClient: http.DefaultClient,
	}
}

func (o *OllamaService) client() (*api.Client, error) {
	raw := o.getBaseURL()
	if raw == "" {
		raw = defaultOllamaBaseURL
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base url %q: %w", raw, err)
	}
	return api.NewClient(base, o.httpClient), nil
}

func (o *OllamaService) model() string {
	if m := o.getModel(); m != "" {
		return m
	}
	return defaultOllamaModel
}

// GenerateContent implements TextGenerator
func (o *OllamaService) GenerateContent(ctx context.Context, prompt string) (string, error) {
	client, err := o.client()
	if err != nil {
		return "", err
	}

	stream := false
	req := &api.GenerateRequest{
		Model:  o.model(),
		Prompt: prompt,
		Stream: &stream,
		Options: map[string]interface{}{
			"temperature": 0.2,
		},
	}

	var out strings.Builder
	err = client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		out.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}

	return out.String(), nil
}

// Ping checks that the server answers and reports its version
func (o *OllamaService) Ping(ctx context.Context) (string, error) {
	client, err := o.client()
	if err != nil {
		return "", err
	}
	return client.Version(ctx)
}
