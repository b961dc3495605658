// Package llm enriches scraped listings through an OpenAI chat completion.
// The client never returns an error to its caller: missing credentials,
// budget exhaustion, transport failures and malformed replies all collapse
// into a nil result, and the pipeline carries on with scrape data alone.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// SystemPrompt constrains the model to conservative long-term residential
// rental estimates.
const SystemPrompt = `You extract structured property data and provide an approximate long-term rental estimate in Spain.

Rules:
- Only consider long-term residential rentals (minimum 6–12 months).
- Ignore vacation, tourist, or short-term rentals.
- Be conservative.
- Return a single conservative maximum monthly rent (maxRent) in EUR.`

// Input carries the only listing context that ever reaches the model: the
// resolved city, the purchase price, and the cleaned feature text.
type Input struct {
	City          string
	PurchasePrice float64
	FeatureText   string
}

// Extract is the validated model reply. Sqm, Rooms and Bathrooms are
// nullable; MaxRent is always present and non-negative.
type Extract struct {
	Sqm       *float64 `json:"sqm"`
	Rooms     *float64 `json:"rooms"`
	Bathrooms *float64 `json:"bathrooms"`
	MaxRent   float64  `json:"maxRent"`
}

// Config holds the client settings.
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	// BaseURL overrides the API endpoint, for tests.
	BaseURL string

	MaxCallsPerMinute int
	MaxCallsPerHour   int
}

// Client calls the chat completion API under a sliding-window call budget.
type Client struct {
	cfg    Config
	api    *openai.Client
	budget *Budget
}

// NewClient builds a client. With an empty API key the client stays usable
// but every Extract call returns nil.
func NewClient(cfg Config) *Client {
	c := &Client{
		cfg:    cfg,
		budget: NewBudget(cfg.MaxCallsPerMinute, cfg.MaxCallsPerHour),
	}
	if cfg.APIKey != "" {
		apiCfg := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			apiCfg.BaseURL = cfg.BaseURL
		}
		c.api = openai.NewClientWithConfig(apiCfg)
	}
	return c
}

// BuildUserPrompt renders the user message for an input.
func BuildUserPrompt(in Input) string {
	return fmt.Sprintf(`Extract structured property data and estimate monthly rent.

City: %s
Purchase price: %.0f EUR

Property features:

%s

Return JSON:

{
  "sqm": number,
  "rooms": number,
  "bathrooms": number,
  "maxRent": number
}`, in.City, in.PurchasePrice, in.FeatureText)
}

// Extract asks the model for structured data plus a rent estimate. Returns
// nil on any failure or when the call budget is exhausted.
func (c *Client) Extract(ctx context.Context, in Input) *Extract {
	if c.api == nil {
		slog.Warn("llm: no API key configured, skipping")
		return nil
	}
	if strings.TrimSpace(in.FeatureText) == "" {
		slog.Warn("llm: empty feature text, skipping")
		return nil
	}
	if !c.budget.TryAcquire() {
		slog.Warn("llm: call budget exhausted, skipping")
		return nil
	}

	callCtx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	resp, err := c.api.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildUserPrompt(in)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		slog.Warn("llm: completion call failed", "error", err)
		return nil
	}
	if len(resp.Choices) == 0 {
		slog.Warn("llm: empty choice list")
		return nil
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		slog.Warn("llm: empty reply", "finish_reason", resp.Choices[0].FinishReason)
		return nil
	}

	out, err := parseReply(content)
	if err != nil {
		slog.Warn("llm: invalid reply", "error", err, "content", truncate(content, 200))
		return nil
	}

	slog.Info("llm: extract ok",
		"city", in.City,
		"max_rent", out.MaxRent,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return out
}

var reFencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// parseReply decodes the model output, tolerating replies wrapped in a
// fenced code block, and validates the schema.
func parseReply(content string) (*Extract, error) {
	if m := reFencedJSON.FindStringSubmatch(content); m != nil {
		content = strings.TrimSpace(m[1])
	}

	var raw struct {
		Sqm       *float64 `json:"sqm"`
		Rooms     *float64 `json:"rooms"`
		Bathrooms *float64 `json:"bathrooms"`
		MaxRent   *float64 `json:"maxRent"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if raw.MaxRent == nil {
		return nil, fmt.Errorf("maxRent missing")
	}
	if *raw.MaxRent < 0 {
		return nil, fmt.Errorf("maxRent negative: %v", *raw.MaxRent)
	}

	return &Extract{
		Sqm:       raw.Sqm,
		Rooms:     raw.Rooms,
		Bathrooms: raw.Bathrooms,
		MaxRent:   *raw.MaxRent,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
