package rewriter

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/raaihank/confidenceboost/internal/config"
	"github.com/raaihank/confidenceboost/internal/privacy"
	"github.com/raaihank/confidenceboost/internal/rewrite"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	datingPrompt       = `Rewrite this message to sound more confident and engaging while maintaining authenticity. Remove uncertainty phrases and make it more direct but not aggressive: "%s"`
	professionalPrompt = `Rewrite this professional message to sound more assertive and confident. Remove hedging language, strengthen the tone, and make requests clearer: "%s"`
)

// RemoteRewriter asks an OpenAI-compatible chat completion endpoint for the rewrite
type RemoteRewriter struct {
	client    *openai.Client
	model     string
	maxTokens int
	detector  *privacy.Detector
	logger    *zap.Logger
}

// NewRemoteRewriter creates a hosted-model rewriter from upstream settings
func NewRemoteRewriter(cfg config.UpstreamConfig, logger *zap.Logger) (*RemoteRewriter, error) {
	if cfg.APIKey == "" && strings.Contains(cfg.BaseURL, "api.openai.com") {
		return nil, fmt.Errorf("upstream api_key is required for %s", cfg.BaseURL)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT3Dot5Turbo
	}

	logger.Info("Remote rewriter initialized",
		zap.String("base_url", clientConfig.BaseURL),
		zap.String("model", model),
		zap.Int("max_tokens", cfg.MaxTokens))

	return &RemoteRewriter{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     model,
		maxTokens: cfg.MaxTokens,
		logger:    logger,
	}, nil
}

// UsePrivacy masks personal details in every message before it is sent
// upstream and restores them in the answer
func (r *RemoteRewriter) UsePrivacy(detector *privacy.Detector) {
	r.detector = detector
}

// Rewrite sends the context prompt to the hosted model
func (r *RemoteRewriter) Rewrite(ctx context.Context, req rewrite.Request) (*Response, error) {
	outgoing := privacy.ProcessResult{MaskedText: req.Text}
	if r.detector != nil {
		outgoing = r.detector.ProcessText(req.Text)
	}

	prompt, err := promptFor(req.Context, outgoing.MaskedText)
	if err != nil {
		return nil, err
	}

	completion := openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if r.maxTokens > 0 {
		completion.MaxTokens = r.maxTokens
	}

	resp, err := r.client.CreateChatCompletion(ctx, completion)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	text := outgoing.Restore(cleanCompletion(resp.Choices[0].Message.Content))
	if text == "" {
		return nil, ErrEmptyResponse
	}

	r.logger.Debug("Remote rewrite completed",
		zap.String("model", resp.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Bool("masked", outgoing.Masked()))

	return &Response{
		Text:     text,
		Changed:  text != strings.TrimSpace(req.Text),
		Strategy: StrategyRemote,
	}, nil
}

// Name returns the strategy name
func (r *RemoteRewriter) Name() string {
	return StrategyRemote
}

func promptFor(ctx rewrite.Context, text string) (string, error) {
	switch ctx {
	case rewrite.ContextDating:
		return fmt.Sprintf(datingPrompt, strings.TrimSpace(text)), nil
	case rewrite.ContextProfessional:
		return fmt.Sprintf(professionalPrompt, strings.TrimSpace(text)), nil
	default:
		return "", &rewrite.ConfigurationError{Field: "context", Value: string(ctx)}
	}
}

// cleanCompletion trims the answer and drops the quotes models tend to echo
// back from the prompt
func cleanCompletion(content string) string {
	text := strings.TrimSpace(content)
	if len(text) >= 2 && strings.HasPrefix(text, `"`) && strings.HasSuffix(text, `"`) {
		text = strings.TrimSpace(text[1 : len(text)-1])
	}
	return text
}
