package chat

import (
	"strings"
	"time"
)

// Roles produced by the relay. The set is open: transcripts written by other
// tooling may carry roles outside this list and they are kept as-is on read.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	timestampLayout    = "[02/01/2006 15:04:05]"
	timestampSeparator = "] : "
)

// Message is a single conversation turn as persisted on disk. Content always
// carries a leading display timestamp of the form "[DD/MM/YYYY HH:MM:SS] : ".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SessionInfo is one entry of the session listing.
type SessionInfo struct {
	ID   string  `json:"id"`
	Name *string `json:"name"`
}

// NewTurn stamps raw text with the wall-clock display prefix. The raw text
// round-trips through PlainContent unchanged.
func NewTurn(role, text string) Message {
	return Message{
		Role:    role,
		Content: time.Now().Format(timestampLayout) + " : " + text,
	}
}

// PlainContent strips the display timestamp prefix from stored content.
// Entries written before the prefix convention existed pass through
// unchanged.
func PlainContent(content string) string {
	if !strings.HasPrefix(content, "[") {
		return content
	}
	if idx := strings.Index(content, timestampSeparator); idx >= 0 {
		return content[idx+len(timestampSeparator):]
	}
	return content
}
