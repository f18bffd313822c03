package api

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"email-agent-backend/pkg/ai"

	"github.com/gin-gonic/gin"
)

const ollamaPingTimeout = 5 * time.Second

// ollamaSettings is the Ollama endpoint the generator reads on every call.
// It starts from OLLAMA_BASE_URL/OLLAMA_MODEL and can be changed at runtime.
type ollamaSettings struct {
	mu      sync.RWMutex
	baseURL string
	model   string
}

func (s *ollamaSettings) get() (baseURL, model string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseURL, s.model
}

// set replaces the endpoint; an empty model keeps the current one
func (s *ollamaSettings) set(baseURL, model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseURL = strings.TrimRight(baseURL, "/")
	if model != "" {
		s.model = model
	}
}

var ollamaRuntime = &ollamaSettings{}

func InitRuntimeConfig(ollamaBaseURL, ollamaModel string) {
	ollamaRuntime.mu.Lock()
	defer ollamaRuntime.mu.Unlock()
	ollamaRuntime.baseURL = strings.TrimRight(ollamaBaseURL, "/")
	ollamaRuntime.model = ollamaModel
}

func GetRuntimeOllamaBaseURL() string {
	baseURL, _ := ollamaRuntime.get()
	return baseURL
}

func GetRuntimeOllamaModel() string {
	_, model := ollamaRuntime.get()
	return model
}

type ollamaSettingsResponse struct {
	BaseURL string `json:"ollama_base_url"`
	Model   string `json:"ollama_model"`
}

type UpdateOllamaSettingsRequest struct {
	OllamaBaseURL string `json:"ollama_base_url" binding:"required,url"`
	OllamaModel   string `json:"ollama_model,omitempty"`
}

// GetOllamaSettings GET /api/settings/ollama
func GetOllamaSettings(c *gin.Context) {
	baseURL, model := ollamaRuntime.get()
	c.JSON(http.StatusOK, ollamaSettingsResponse{BaseURL: baseURL, Model: model})
}

// UpdateOllamaSettings PUT /api/settings/ollama
func UpdateOllamaSettings(c *gin.Context) {
	var req UpdateOllamaSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ollamaRuntime.set(req.OllamaBaseURL, req.OllamaModel)
	baseURL, model := ollamaRuntime.get()
	c.JSON(http.StatusOK, ollamaSettingsResponse{BaseURL: baseURL, Model: model})
}

// TestOllamaConnection POST /api/settings/ollama/test
//
// Pings the body's ollama_base_url, or the current endpoint when the body
// is empty, and reports the server version. Settings are not changed.
func TestOllamaConnection(c *gin.Context) {
	var req struct {
		OllamaBaseURL string `json:"ollama_base_url"`
	}
	_ = c.ShouldBindJSON(&req)

	baseURL, model := ollamaRuntime.get()
	if req.OllamaBaseURL != "" {
		baseURL = req.OllamaBaseURL
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ollamaPingTimeout)
	defer cancel()

	version, err := ai.NewOllamaService(baseURL, model).Ping(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"connected": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": true, "ollama_base_url": baseURL, "version": version})
}
