package config

import (
	"strings"
	"time"

	"github.com/justsurfingit/job-application-tracker/internal/database"
	"github.com/justsurfingit/job-application-tracker/internal/mailsource"
	"github.com/justsurfingit/job-application-tracker/internal/services"
	"github.com/rotisserie/eris"
)

// Config is read from flags and the environment (.env is loaded first).
type Config struct {
	DatabaseURL string `name:"database-url" env:"DATABASE_URL" default:"sqlite://jobtracker.db" help:"Postgres DSN or sqlite://path."`

	LLMProvider    string  `name:"llm-provider" env:"LLM_PROVIDER" enum:"googleai,openai" default:"googleai" help:"Model backend: googleai or openai."`
	GeminiAPIKey   string  `name:"gemini-api-key" env:"GEMINI_API_KEY" help:"Google AI API key."`
	OpenAIAPIKey   string  `name:"openai-api-key" env:"OPENAI_API_KEY" help:"OpenAI API key."`
	LLMModel       string  `name:"llm-model" env:"LLM_MODEL" help:"Model name; empty picks the provider default."`
	LLMTemperature float64 `name:"llm-temperature" env:"LLM_TEMPERATURE" default:"0.2" help:"Sampling temperature."`
	LLMRPS         float64 `name:"llm-rps" env:"LLM_RPS" default:"0" help:"Model calls per second; 0 disables the limiter."`

	ExtractConcurrency int `name:"extract-concurrency" env:"EXTRACT_CONCURRENCY" default:"1" help:"Parallel model calls per run."`
	LookbackDays       int `name:"lookback-days" env:"LOOKBACK_DAYS" default:"2" help:"Mail lookback window in days."`
	MaxResults         int `name:"max-results" env:"MAX_RESULTS" default:"0" help:"Cap on fetched emails; 0 is unlimited."`

	HTTPAddr      string        `name:"http-addr" env:"HTTP_ADDR" default:":8080" help:"Listen address for serve."`
	CORSOrigins   []string      `name:"cors-origins" env:"CORS_ORIGINS" default:"http://localhost:5173" sep:"," help:"Allowed CORS origins; * allows any."`
	WatchInterval time.Duration `name:"watch-interval" env:"WATCH_INTERVAL" default:"0s" help:"Background classification interval; 0 disables."`

	LogLevel string `name:"log-level" env:"LOG_LEVEL" default:"info" help:"debug, info, warn or error."`
	LogJSON  bool   `name:"log-json" env:"LOG_JSON" help:"Emit JSON logs instead of console output."`
}

// Validate checks values kong cannot check on its own.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return eris.New("DATABASE_URL is required")
	}
	if c.LookbackDays < 1 {
		return eris.Errorf("LOOKBACK_DAYS must be at least 1, got %d", c.LookbackDays)
	}
	if c.MaxResults < 0 {
		return eris.Errorf("MAX_RESULTS must not be negative, got %d", c.MaxResults)
	}
	if c.ExtractConcurrency < 1 {
		return eris.Errorf("EXTRACT_CONCURRENCY must be at least 1, got %d", c.ExtractConcurrency)
	}
	if c.LLMRPS < 0 {
		return eris.Errorf("LLM_RPS must not be negative, got %v", c.LLMRPS)
	}
	if c.WatchInterval < 0 {
		return eris.Errorf("WATCH_INTERVAL must not be negative, got %s", c.WatchInterval)
	}
	return nil
}

// ValidateLLM is checked only by commands that call the model.
func (c *Config) ValidateLLM() error {
	if c.LLM().APIKey == "" {
		switch c.LLMProvider {
		case services.LLMProviderOpenAI:
			return eris.New("OPENAI_API_KEY is required for the openai provider")
		default:
			return eris.New("GEMINI_API_KEY is required for the googleai provider")
		}
	}
	return nil
}

func (c *Config) Database() database.Config {
	return database.Config{URL: c.DatabaseURL, MaxOpenConns: 10, ConnMaxLifetime: 30 * time.Minute}
}

func (c *Config) LLM() services.LLMConfig {
	key := c.GeminiAPIKey
	if c.LLMProvider == services.LLMProviderOpenAI {
		key = c.OpenAIAPIKey
	}
	return services.LLMConfig{
		Provider:          c.LLMProvider,
		APIKey:            strings.TrimSpace(key),
		Model:             c.LLMModel,
		Temperature:       c.LLMTemperature,
		RequestsPerSecond: c.LLMRPS,
	}
}

func (c *Config) Query() mailsource.Query {
	return mailsource.Query{LookbackDays: c.LookbackDays, MaxResults: c.MaxResults}
}

// Origins drops blanks from the configured CORS origins.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range c.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
