package chat

import (
	"strings"

	"github.com/mhutchinson/chatrelay/internal/models"
)

// BuildTranscript flattens prior messages plus the incoming user utterance
// into the prompt sent to the model:
//
//	User: <content>
//	Assistant: <content>
//	...
//	User: <incoming>
//	Assistant:
//
// The trailing "Assistant:" cue is left empty for the model to complete.
// Messages with a user role render as User lines; any other stored role
// renders as an Assistant line.
func BuildTranscript(history []models.Message, incoming string) string {
	var b strings.Builder
	for _, msg := range history {
		if msg.Role == models.RoleUser {
			b.WriteString("User: ")
		} else {
			b.WriteString("Assistant: ")
		}
		b.WriteString(msg.Content)
		b.WriteByte('\n')
	}
	b.WriteString("User: ")
	b.WriteString(incoming)
	b.WriteString("\nAssistant:")
	return b.String()
}
