package suggest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/sashabaranov/go-openai"
)

// Completer sends one system+user prompt pair to a model and returns its
// text reply.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ProviderOptions select and configure a model provider.
type ProviderOptions struct {
	// Name is "claude"/"anthropic" or "openai"/"gpt".
	Name  string
	Model string
	// APIKey overrides the provider's environment variables.
	APIKey string
	// BaseURL overrides the API endpoint.
	BaseURL   string
	MaxTokens int
}

// NewCompleter creates the provider named by opts.Name.
func NewCompleter(opts ProviderOptions) (Completer, error) {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	switch opts.Name {
	case "claude", "anthropic", "":
		return NewClaude(opts)
	case "openai", "gpt":
		return NewOpenAI(opts)
	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: claude, openai)", opts.Name)
	}
}

func apiKey(explicit string, envs ...string) string {
	if explicit != "" {
		return explicit
	}
	for _, e := range envs {
		if v := os.Getenv(e); v != "" {
			return v
		}
	}
	return ""
}

// Claude completes prompts with Anthropic's Messages API.
type Claude struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

// NewClaude creates a Claude completer. The key comes from opts.APIKey,
// UISTEP_ANTHROPIC_KEY or ANTHROPIC_API_KEY.
func NewClaude(opts ProviderOptions) (*Claude, error) {
	key := apiKey(opts.APIKey, "UISTEP_ANTHROPIC_KEY", "ANTHROPIC_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("UISTEP_ANTHROPIC_KEY or ANTHROPIC_API_KEY environment variable required")
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(key), option.WithMaxRetries(0)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	model := opts.Model
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_20250514)
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	return &Claude{client: anthropic.NewClient(reqOpts...), model: model, maxTokens: opts.MaxTokens}, nil
}

// Complete implements Completer.
func (c *Claude) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", classify(fmt.Errorf("claude API error: %w", err))
	}
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("empty response from Claude")
}

// OpenAI completes prompts with the chat completions API.
type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAI creates an OpenAI completer. The key comes from opts.APIKey,
// UISTEP_OPENAI_KEY or OPENAI_API_KEY.
func NewOpenAI(opts ProviderOptions) (*OpenAI, error) {
	key := apiKey(opts.APIKey, "UISTEP_OPENAI_KEY", "OPENAI_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("UISTEP_OPENAI_KEY or OPENAI_API_KEY environment variable required")
	}
	cfg := openai.DefaultConfig(key)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	model := opts.Model
	if model == "" {
		model = "gpt-4o"
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model, maxTokens: opts.MaxTokens}, nil
}

// Complete implements Completer.
func (c *OpenAI) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", classify(fmt.Errorf("openai API error: %w", err))
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty response from OpenAI")
	}
	return resp.Choices[0].Message.Content, nil
}

// RetryableError marks a provider failure worth retrying: rate limits,
// server errors and transport failures.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// classify wraps err in a RetryableError unless the API rejected the
// request itself.
func classify(err error) error {
	status := 0
	var aerr *anthropic.Error
	var oerr *openai.APIError
	var rerr *openai.RequestError
	switch {
	case errors.As(err, &aerr):
		status = aerr.StatusCode
	case errors.As(err, &oerr):
		status = oerr.HTTPStatusCode
	case errors.As(err, &rerr):
		status = rerr.HTTPStatusCode
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	switch {
	case status == 0,
		status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests,
		status >= http.StatusInternalServerError:
		return &RetryableError{Err: err}
	}
	return err
}
