package services

import (
	"context"
	"errors"
	"testing"

	"github.com/justsurfingit/job-application-tracker/internal/logger"
	"github.com/tmc/langchaingo/llms"
)

type recordingModel struct {
	msgs    []llms.MessageContent
	opts    llms.CallOptions
	reply   string
	noReply bool
	err     error
}

func (m *recordingModel) GenerateContent(_ context.Context, msgs []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.msgs = msgs
	for _, o := range options {
		o(&m.opts)
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.noReply {
		return &llms.ContentResponse{}, nil
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *recordingModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestLLMServiceCompleteSendsSystemAndHuman(t *testing.T) {
	model := &recordingModel{reply: "None"}
	svc := NewLLMServiceWithModel(model, LLMConfig{Temperature: 0.2}, logger.Nop())

	got, err := svc.Complete(context.Background(), "instructions", "email body")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "None" {
		t.Fatalf("Complete() = %q", got)
	}
	if len(model.msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(model.msgs))
	}
	if model.msgs[0].Role != llms.ChatMessageTypeSystem || model.msgs[1].Role != llms.ChatMessageTypeHuman {
		t.Fatalf("unexpected roles: %v, %v", model.msgs[0].Role, model.msgs[1].Role)
	}
	if text, ok := model.msgs[1].Parts[0].(llms.TextContent); !ok || text.Text != "email body" {
		t.Fatalf("unexpected human part: %#v", model.msgs[1].Parts[0])
	}
	if model.opts.Temperature != 0.2 {
		t.Fatalf("temperature = %v", model.opts.Temperature)
	}
}

func TestLLMServiceCompleteErrors(t *testing.T) {
	svc := NewLLMServiceWithModel(&recordingModel{err: errors.New("quota")}, LLMConfig{}, logger.Nop())
	if _, err := svc.Complete(context.Background(), "s", "u"); err == nil {
		t.Fatalf("expected backend error")
	}
	svc = NewLLMServiceWithModel(&recordingModel{noReply: true}, LLMConfig{}, logger.Nop())
	if _, err := svc.Complete(context.Background(), "s", "u"); err == nil {
		t.Fatalf("expected error for empty choices")
	}
}

func TestNewLLMServiceRequiresKey(t *testing.T) {
	if _, err := NewLLMService(context.Background(), LLMConfig{Provider: LLMProviderOpenAI}, logger.Nop()); err == nil {
		t.Fatalf("expected error for missing api key")
	}
	if _, err := NewLLMService(context.Background(), LLMConfig{Provider: "claude-local", APIKey: "k"}, logger.Nop()); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}
