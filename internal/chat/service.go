// Package chat turns one user utterance into one persisted exchange:
// record the user turn, rebuild the conversation transcript, ask the model
// for a completion and record it as the assistant turn.
package chat

import (
	"context"
	"fmt"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/mhutchinson/chatrelay/internal/llm"
	"github.com/mhutchinson/chatrelay/internal/models"
	"github.com/mhutchinson/chatrelay/internal/store"
)

type Service struct {
	store   *store.Store
	gen     llm.Generator
	logger  *zap.Logger
	encoder *tiktoken.Tiktoken
}

func New(st *store.Store, gen llm.Generator, logger *zap.Logger) *Service {
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		logger.Warn("prompt token accounting disabled", zap.Error(err))
		encoder = nil
	}
	return &Service{
		store:   st,
		gen:     gen,
		logger:  logger,
		encoder: encoder,
	}
}

// Reply is the outcome of one chat turn.
type Reply struct {
	Response  string `json:"response"`
	MessageID int64  `json:"message_id"`
}

// Send runs one chat turn against a conversation. The user turn is
// committed before the model is called, so a model failure leaves the user
// message persisted with no assistant reply; the client may retry with the
// same conversation. Returns store.ErrNotFound if the conversation does
// not exist, in which case nothing is written.
func (s *Service) Send(ctx context.Context, conversationID int64, text string) (*Reply, error) {
	if _, err := s.store.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	userMsg, err := s.store.AppendMessage(ctx, conversationID, models.RoleUser, text)
	if err != nil {
		return nil, fmt.Errorf("record user turn: %w", err)
	}

	history, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	// Drop the row we just wrote; BuildTranscript re-adds the incoming
	// text as the final User line.
	if n := len(history); n > 0 && history[n-1].ID == userMsg.ID {
		history = history[:n-1]
	}

	prompt := BuildTranscript(history, text)
	s.logger.Debug("assembled transcript",
		zap.Int64("conversation_id", conversationID),
		zap.Int("history_messages", len(history)),
		zap.Int("prompt_tokens", s.countTokens(prompt)))

	completion, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate completion: %w", err)
	}

	assistantMsg, err := s.store.AppendMessage(ctx, conversationID, models.RoleAssistant, completion)
	if err != nil {
		return nil, fmt.Errorf("record assistant turn: %w", err)
	}

	return &Reply{Response: completion, MessageID: assistantMsg.ID}, nil
}

func (s *Service) countTokens(prompt string) int {
	if s.encoder == nil {
		return 0
	}
	return len(s.encoder.Encode(prompt, nil, nil))
}
