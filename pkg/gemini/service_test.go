package gemini

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{}}},
			{Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"summary":`), genai.Text(` "hi"}`)}}},
		},
	}

	text, err := extractText(resp)
	require.NoError(t, err)
	assert.Equal(t, `{"summary": "hi"}`, text)
}

func TestExtractText_Empty(t *testing.T) {
	_, err := extractText(nil)
	assert.ErrorIs(t, err, errEmptyResponse)

	_, err = extractText(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}})
	assert.ErrorIs(t, err, errEmptyResponse)
}
