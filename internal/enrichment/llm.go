package enrichment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Supported LLM providers.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// LLMClient calls a text generation endpoint: Ollama /api/generate or an
// OpenAI-compatible /v1/chat/completions.
type LLMClient struct {
	client   *resty.Client
	provider string
	endpoint string
	model    string
}

type ollamaRequest struct {
	Options map[string]any `json:"options,omitempty"`
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// NewLLMClient creates a client for provider at endpoint. apiKey is sent as a
// bearer token when set.
func NewLLMClient(provider, endpoint, model, apiKey string, timeout time.Duration) (*LLMClient, error) {
	if provider != ProviderOllama && provider != ProviderOpenAI {
		return nil, fmt.Errorf("unsupported LLM provider %q", provider)
	}

	if endpoint == "" {
		return nil, fmt.Errorf("%s: endpoint is required", provider)
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}

	return &LLMClient{client: client, provider: provider, endpoint: endpoint, model: model}, nil
}

// Complete sends prompt and returns the generated text. maxTokens bounds the
// generation length when positive.
func (c *LLMClient) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if c.provider == ProviderOpenAI {
		return c.completeChat(ctx, prompt, maxTokens)
	}

	return c.completeOllama(ctx, prompt, maxTokens)
}

func (c *LLMClient) completeOllama(ctx context.Context, prompt string, maxTokens int) (string, error) {
	req := ollamaRequest{Model: c.model, Prompt: prompt}
	if maxTokens > 0 {
		req.Options = map[string]any{"num_predict": maxTokens}
	}

	var out ollamaResponse

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&out).
		Post(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: ollama request: %w", ErrEnrichment, err)
	}

	if resp.IsError() {
		return "", fmt.Errorf("%w: ollama status %d: %s", ErrEnrichment, resp.StatusCode(), out.Error)
	}

	return strings.TrimSpace(out.Response), nil
}

func (c *LLMClient) completeChat(ctx context.Context, prompt string, maxTokens int) (string, error) {
	var out chatResponse

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model:     c.model,
			Messages:  []chatMessage{{Role: "user", Content: prompt}},
			MaxTokens: maxTokens,
		}).
		SetResult(&out).
		Post(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: chat request: %w", ErrEnrichment, err)
	}

	if resp.IsError() {
		return "", fmt.Errorf("%w: chat status %d", ErrEnrichment, resp.StatusCode())
	}

	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: chat response has no choices", ErrEnrichment)
	}

	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// tokensForWords converts a word budget to a generous token budget.
func tokensForWords(words int) int {
	if words <= 0 {
		return 0
	}

	return words*2 + 16
}

// LLMSummarizer generates descriptions with an LLM.
type LLMSummarizer struct {
	client *LLMClient
}

// NewLLMSummarizer creates a summarizer backed by client.
func NewLLMSummarizer(client *LLMClient) *LLMSummarizer {
	return &LLMSummarizer{client: client}
}

// Summarize implements Summarizer.
func (s *LLMSummarizer) Summarize(ctx context.Context, prompt string, minWords, maxWords int) (string, error) {
	if minWords > 0 || maxWords > 0 {
		prompt = fmt.Sprintf("%s\nUse between %d and %d words.", prompt, minWords, maxWords)
	}

	return s.client.Complete(ctx, prompt, tokensForWords(maxWords))
}

// LLMKeywordExtractor asks an LLM for a comma-separated keyword list.
type LLMKeywordExtractor struct {
	client *LLMClient
}

// NewLLMKeywordExtractor creates an extractor backed by client.
func NewLLMKeywordExtractor(client *LLMClient) *LLMKeywordExtractor {
	return &LLMKeywordExtractor{client: client}
}

// Extract implements KeywordExtractor.
func (e *LLMKeywordExtractor) Extract(ctx context.Context, text string, topN int) ([]string, error) {
	prompt := fmt.Sprintf(
		"Extract the %d most relevant keywords or two-word key phrases from the text below. "+
			"Reply with a comma-separated list only.\n\n%s", topN, text)

	reply, err := e.client.Complete(ctx, prompt, 64)
	if err != nil {
		return nil, err
	}

	return CleanKeywords(splitKeywords(reply), topN), nil
}

func splitKeywords(reply string) []string {
	return strings.FieldsFunc(reply, func(r rune) bool {
		return r == ',' || r == '\n' || r == ';'
	})
}
