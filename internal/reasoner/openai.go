package reasoner

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ChatClient is the subset of the OpenAI client the completer uses.
// Narrowed for testability.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAICompleter implements Completer over the OpenAI chat API.
type OpenAICompleter struct {
	client ChatClient
	model  string
}

// NewOpenAICompleter creates a completer with a real OpenAI client.
func NewOpenAICompleter(apiKey, model string) *OpenAICompleter {
	return NewOpenAICompleterWithClient(openai.NewClient(apiKey), model)
}

// NewOpenAICompleterWithClient creates a completer with a custom client.
func NewOpenAICompleterWithClient(client ChatClient, model string) *OpenAICompleter {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAICompleter{
		client: client,
		model:  model,
	}
}

// Complete sends one chat completion request and returns the first choice.
func (c *OpenAICompleter) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		return "", wrapOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", NewCompletionError("openai", ErrorCodeServerError, "no choices in response", nil)
	}
	return resp.Choices[0].Message.Content, nil
}

// wrapOpenAIError converts client errors into CompletionError.
func wrapOpenAIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewCompletionError("openai", ErrorCodeTimeout, "request timed out", err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ErrorCodeUnknown
		switch {
		case apiErr.HTTPStatusCode == 429:
			code = ErrorCodeRateLimit
		case apiErr.HTTPStatusCode >= 500:
			code = ErrorCodeServerError
		case apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403:
			code = ErrorCodeAuthentication
		case apiErr.HTTPStatusCode == 400 || apiErr.HTTPStatusCode == 404 || apiErr.HTTPStatusCode == 422:
			code = ErrorCodeInvalidRequest
		}
		return NewCompletionError("openai", code, apiErr.Message, err)
	}

	msg := strings.ToLower(err.Error())
	code := ErrorCodeUnknown
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		code = ErrorCodeTimeout
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429"):
		code = ErrorCodeRateLimit
	case strings.Contains(msg, "connection") || strings.Contains(msg, "unavailable"):
		code = ErrorCodeServerError
	}
	return NewCompletionError("openai", code, err.Error(), err)
}
