package reasoner

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// VertexCompleter implements Completer over Google Vertex AI using the
// Gen AI SDK. It uses Application Default Credentials for authentication.
type VertexCompleter struct {
	client *genai.Client
	model  string
}

// NewVertexCompleter creates a completer for the given project and location.
func NewVertexCompleter(ctx context.Context, projectID, location, model string) (*VertexCompleter, error) {
	if projectID == "" {
		return nil, fmt.Errorf("vertex project id is required")
	}
	if location == "" {
		location = "us-central1"
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}

	return &VertexCompleter{
		client: client,
		model:  model,
	}, nil
}

// Complete sends one generate-content request and returns the joined text
// parts of the first candidate.
func (c *VertexCompleter) Complete(ctx context.Context, req Request) (string, error) {
	config := &genai.GenerateContentConfig{}
	config.Temperature = genai.Ptr(float32(req.Temperature))
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}

	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: req.Prompt}},
	}}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", wrapVertexError(err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", NewCompletionError("vertexai", ErrorCodeServerError, "no candidates in response", nil)
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	return text.String(), nil
}

// wrapVertexError converts Gen AI errors into CompletionError. The SDK does
// not expose typed errors, so classification is by message.
func wrapVertexError(err error) error {
	msg := strings.ToLower(err.Error())

	code := ErrorCodeUnknown
	switch {
	case strings.Contains(msg, "authentication") || strings.Contains(msg, "credential") ||
		strings.Contains(msg, "403") || strings.Contains(msg, "401"):
		code = ErrorCodeAuthentication
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429") || strings.Contains(msg, "quota"):
		code = ErrorCodeRateLimit
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		code = ErrorCodeTimeout
	case strings.Contains(msg, "invalid") || strings.Contains(msg, "400"):
		code = ErrorCodeInvalidRequest
	case strings.Contains(msg, "500") || strings.Contains(msg, "503") ||
		strings.Contains(msg, "server") || strings.Contains(msg, "unavailable"):
		code = ErrorCodeServerError
	}

	return NewCompletionError("vertexai", code, err.Error(), err)
}
