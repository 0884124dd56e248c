package llm

import (
	"context"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Generator produces a text completion for a flat prompt. The chat service
// depends on this interface so tests can substitute a canned model.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Service calls an OpenAI-compatible completion endpoint.
type Service struct {
	llm llms.Model
}

func New(baseURL, token, model string) (*Service, error) {
	llm, err := openai.New(
		openai.WithToken(token),
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, err
	}
	return &Service{llm: llm}, nil
}

func (s *Service) Generate(ctx context.Context, prompt string) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, s.llm, prompt)
}
