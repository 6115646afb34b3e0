package chat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Record is the durable state of one session: an optional display name and
// the ordered transcript. Message order is conversation order and is never
// reordered or deduplicated.
type Record struct {
	Name     *string   `json:"name"`
	Messages []Message `json:"messages"`
}

// CorruptionError reports a transcript that could not be decoded. The bad
// file is left in place for inspection; the store never repairs or deletes
// it.
type CorruptionError struct {
	SessionID string
	Err       error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("corrupted history for %q: %v", e.SessionID, e.Err)
}

func (e *CorruptionError) Unwrap() error { return e.Err }

// EncodeRecord serialises a record to the canonical wrapped shape, name
// before messages. Output is indented and keeps non-ASCII text and markup
// verbatim.
func EncodeRecord(record Record) ([]byte, error) {
	if record.Messages == nil {
		record.Messages = []Message{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(record); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeRecord parses a stored transcript. Two shapes are accepted: the
// canonical wrapped object with a messages field, and a bare message array
// written by early versions, which decodes as a record with no name. Any
// other shape yields a *CorruptionError naming the session.
func DecodeRecord(sessionID string, data []byte) (Record, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var messages []Message
		if err := json.Unmarshal(trimmed, &messages); err != nil {
			return Record{}, &CorruptionError{SessionID: sessionID, Err: err}
		}
		return Record{Messages: messages}, nil
	}

	var wrapped struct {
		Name     *string    `json:"name"`
		Messages *[]Message `json:"messages"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return Record{}, &CorruptionError{SessionID: sessionID, Err: err}
	}
	if wrapped.Messages == nil {
		return Record{}, &CorruptionError{SessionID: sessionID, Err: errors.New("missing messages field")}
	}
	return Record{Name: wrapped.Name, Messages: *wrapped.Messages}, nil
}
