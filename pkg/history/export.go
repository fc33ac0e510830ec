package history

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jllopis/neurosync/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Export formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// TimestampLayout is used by the text export.
const TimestampLayout = "2006-01-02 15:04:05"

const titleLimit = 30

// Title derives a conversation title from its first message: the first 30
// characters, with "..." appended when the message was longer.
func Title(message string) string {
	r := []rune(strings.TrimSpace(message))
	if len(r) > titleLimit {
		return string(r[:titleLimit]) + "..."
	}
	return string(r)
}

// Transcript is the structured export document.
type Transcript struct {
	Conversation *Conversation `json:"conversation,omitempty" yaml:"conversation,omitempty"`
	Messages     []Message     `json:"messages" yaml:"messages"`
	ExportedAt   time.Time     `json:"exported_at" yaml:"exported_at"`
}

// Export renders messages in the requested format. An empty format means text.
func Export(format string, conv *Conversation, messages []Message, now time.Time) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatText:
		return []byte(ExportText(messages)), nil
	case FormatJSON:
		return json.MarshalIndent(Transcript{Conversation: conv, Messages: messages, ExportedAt: now.UTC()}, "", "  ")
	case FormatYAML:
		return yaml.Marshal(Transcript{Conversation: conv, Messages: messages, ExportedAt: now.UTC()})
	default:
		return nil, errors.New(errors.CodeInvalidInput, fmt.Sprintf("unsupported export format %q", format), nil)
	}
}

// ExportText renders the plain-text transcript.
func ExportText(messages []Message) string {
	lines := []string{"NeuroSync Conversation Export", strings.Repeat("=", 40), ""}
	for _, m := range messages {
		prefix := "NEUROSYNC: "
		if m.Role == "user" {
			prefix = "USER: "
		}
		lines = append(lines, fmt.Sprintf("%s - %s%s", m.Timestamp.Format(TimestampLayout), prefix, m.Content), "")
	}
	return strings.Join(lines, "\n")
}

// Stats summarizes a conversation.
type Stats struct {
	TotalMessages     int        `json:"total_messages"`
	UserMessages      int        `json:"user_messages"`
	AssistantMessages int        `json:"ai_messages"`
	AvgUserLength     float64    `json:"avg_user_msg_length"`
	AvgAssistantLen   float64    `json:"avg_ai_msg_length"`
	StartTime         *time.Time `json:"start_time"`
	EndTime           *time.Time `json:"end_time"`
}

// ComputeStats counts messages per role and their average length in
// characters.
func ComputeStats(messages []Message) Stats {
	var (
		st                 Stats
		userChars, aiChars int
	)
	st.TotalMessages = len(messages)
	for _, m := range messages {
		switch m.Role {
		case "user":
			st.UserMessages++
			userChars += len([]rune(m.Content))
		case "assistant":
			st.AssistantMessages++
			aiChars += len([]rune(m.Content))
		}
	}
	if st.UserMessages > 0 {
		st.AvgUserLength = float64(userChars) / float64(st.UserMessages)
	}
	if st.AssistantMessages > 0 {
		st.AvgAssistantLen = float64(aiChars) / float64(st.AssistantMessages)
	}
	if len(messages) > 0 {
		start, end := messages[0].Timestamp, messages[len(messages)-1].Timestamp
		st.StartTime, st.EndTime = &start, &end
	}
	return st
}
