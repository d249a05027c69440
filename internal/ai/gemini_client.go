package ai

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient interacts with Google Gemini API using the official SDK
type GeminiClient struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiClient creates a new Gemini API client
func NewGeminiClient(ctx context.Context, apiKey, modelName string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is empty")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	model := client.GenerativeModel(modelName)

	return &GeminiClient{
		client: client,
		model:  model,
	}, nil
}

// Close closes the client connection
func (c *GeminiClient) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// GenerateContent sends a prompt to Gemini and returns the response text
func (c *GeminiClient) GenerateContent(ctx context.Context, prompt string) (string, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation error: %w", err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from gemini")
	}

	var fullText string
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			fullText += string(txt)
		}
	}

	return fullText, nil
}

// DraftMessage builds the prompt for a known draft kind and returns the
// generated client-facing text.
func (c *GeminiClient) DraftMessage(ctx context.Context, kind string, fields map[string]interface{}) (string, error) {
	prompt, err := BuildDraftPrompt(kind, fields)
	if err != nil {
		return "", err
	}
	return c.GenerateContent(ctx, prompt)
}
