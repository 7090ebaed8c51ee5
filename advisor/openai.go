package advisor

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/tradegate/market"
	"github.com/rustyeddy/tradegate/pkg/clock"
	"github.com/sashabaranov/go-openai"
)

type OpenAIOptions struct {
	APIKey       string  `json:"-" yaml:"-"`
	BaseURL      string  `json:"base_url" yaml:"base_url"`
	Model        string  `json:"model" yaml:"model" default:"gpt-3.5-turbo"`
	MaxTokens    int     `json:"max_tokens" yaml:"max_tokens" default:"200"`
	Temperature  float32 `json:"temperature" yaml:"temperature" default:"0.7"`
	ModelVersion string  `json:"model_version" yaml:"model_version" default:"v2.3-ensemble-2025"`
}

// OpenAI asks a chat completion model for a recommendation.
type OpenAI struct {
	client *openai.Client
	opts   OpenAIOptions
	clock  clock.Clock
	logger zerolog.Logger
}

func NewOpenAI(opts OpenAIOptions, c clock.Clock, logger zerolog.Logger) *OpenAI {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.Model == "" {
		opts.Model = openai.GPT3Dot5Turbo
	}
	if opts.ModelVersion == "" {
		opts.ModelVersion = ModelVersion
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		opts:   opts,
		clock:  c,
		logger: logger.With().Str("component", "openai_advisor").Logger(),
	}
}

func (o *OpenAI) complete(ctx context.Context, prompt string) (string, error) {
	o.logger.Debug().Str("prompt", prompt).Msg("sending prompt")

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.opts.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   o.opts.MaxTokens,
		Temperature: o.opts.Temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Recommend fails rather than guessing when the model is unreachable or
// its reply cannot be parsed.
func (o *OpenAI) Recommend(ctx context.Context, asset market.Asset, prices []market.PriceSample) (market.Recommendation, error) {
	if len(prices) == 0 {
		return market.Recommendation{}, fmt.Errorf("%s: no prices", asset.Symbol)
	}

	reply, err := o.complete(ctx, Prompt(asset, prices))
	if err != nil {
		o.logger.Error().Err(err).Str("asset", asset.Symbol).Msg("completion failed")
		return market.Recommendation{}, fmt.Errorf("openai %s: %w", asset.Symbol, err)
	}

	rec, err := ParseAnswer(reply)
	if err != nil {
		o.logger.Warn().Err(err).Str("asset", asset.Symbol).Str("reply", reply).Msg("unparseable reply")
		return market.Recommendation{}, fmt.Errorf("openai %s: %w", asset.Symbol, err)
	}
	rec.Asset = asset.Symbol
	rec.Model = o.opts.ModelVersion
	rec.Time = o.clock.Now()

	o.logger.Info().
		Str("asset", asset.Symbol).
		Str("action", string(rec.Action)).
		Float64("confidence", rec.Confidence).
		Msg("recommendation")
	return rec, nil
}
