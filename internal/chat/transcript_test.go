package chat_test

import (
	"testing"

	"github.com/mhutchinson/chatrelay/internal/chat"
	"github.com/mhutchinson/chatrelay/internal/models"
)

func TestBuildTranscript(t *testing.T) {
	tests := []struct {
		name     string
		history  []models.Message
		incoming string
		want     string
	}{
		{
			name:     "empty history",
			history:  nil,
			incoming: "Hi",
			want:     "User: Hi\nAssistant:",
		},
		{
			name: "one prior exchange",
			history: []models.Message{
				{Role: models.RoleUser, Content: "Hi"},
				{Role: models.RoleAssistant, Content: "Hello"},
			},
			incoming: "How are you?",
			want:     "User: Hi\nAssistant: Hello\nUser: How are you?\nAssistant:",
		},
		{
			name: "unknown stored role renders as assistant",
			history: []models.Message{
				{Role: "system", Content: "be nice"},
			},
			incoming: "Hi",
			want:     "Assistant: be nice\nUser: Hi\nAssistant:",
		},
		{
			name: "multiline content is kept verbatim",
			history: []models.Message{
				{Role: models.RoleUser, Content: "line one\nline two"},
			},
			incoming: "ok",
			want:     "User: line one\nline two\nUser: ok\nAssistant:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := chat.BuildTranscript(tt.history, tt.incoming)
			if got != tt.want {
				t.Errorf("BuildTranscript() = %q, want %q", got, tt.want)
			}
		})
	}
}
