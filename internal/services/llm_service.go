package services

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"
)

const (
	LLMProviderGoogleAI = "googleai"
	LLMProviderOpenAI   = "openai"
)

// Completer is the text-completion boundary the extraction engine depends on.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type LLMConfig struct {
	Provider          string
	APIKey            string
	Model             string
	Temperature       float64
	RequestsPerSecond float64
}

// LLMService sends a system instruction plus one user message to a chat model.
type LLMService struct {
	Client      llms.Model
	temperature float64
	limiter     *rate.Limiter
	log         zerolog.Logger
}

// NewLLMService builds the langchaingo client for the configured provider.
func NewLLMService(ctx context.Context, cfg LLMConfig, log zerolog.Logger) (*LLMService, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, eris.Errorf("api key for llm provider %q is empty", cfg.Provider)
	}

	var (
		client llms.Model
		err    error
	)
	switch cfg.Provider {
	case "", LLMProviderGoogleAI:
		model := cfg.Model
		if model == "" {
			model = "gemini-2.5-flash"
		}
		client, err = googleai.New(ctx,
			googleai.WithAPIKey(cfg.APIKey),
			googleai.WithDefaultModel(model),
		)
	case LLMProviderOpenAI:
		model := cfg.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		client, err = openai.New(
			openai.WithToken(cfg.APIKey),
			openai.WithModel(model),
		)
	default:
		return nil, eris.Errorf("unsupported llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "create %s client", cfg.Provider)
	}
	return NewLLMServiceWithModel(client, cfg, log), nil
}

// NewLLMServiceWithModel wraps an existing langchaingo model.
func NewLLMServiceWithModel(client llms.Model, cfg LLMConfig, log zerolog.Logger) *LLMService {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &LLMService{
		Client:      client,
		temperature: cfg.Temperature,
		limiter:     rate.NewLimiter(limit, 1),
		log:         log,
	}
}

func (s *LLMService) Complete(ctx context.Context, system, user string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "llm rate limiter")
	}
	msgs := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}
	resp, err := s.Client.GenerateContent(ctx, msgs, llms.WithTemperature(s.temperature))
	if err != nil {
		return "", eris.Wrap(err, "llm generate")
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", eris.New("llm returned no choices")
	}
	s.log.Debug().Int("reply_len", len(resp.Choices[0].Content)).Msg("llm reply")
	return resp.Choices[0].Content, nil
}
