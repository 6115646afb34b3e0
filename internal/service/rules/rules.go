package rules

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// Source yields the static preamble injected ahead of every prompt sent
// upstream. Implementations are best effort and never return an error.
type Source interface {
	Rules() string
}

// FileSource reads a JSON array of rules from disk on every call, so edits
// take effect without a restart.
type FileSource struct {
	path string
}

// NewFileSource returns a source backed by the given rules file.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Rules returns the rule entries joined with newlines. A missing or
// unparseable rules file degrades to an empty preamble.
func (s *FileSource) Rules() string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		log.Warn().Err(err).Str("file", s.path).Msg("unable to read rules, continuing without preamble")
		return ""
	}

	var entries []any
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Warn().Err(err).Str("file", s.path).Msg("unable to parse rules, continuing without preamble")
		return ""
	}

	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		lines = append(lines, stringify(entry))
	}
	return strings.Join(lines, "\n")
}

// stringify renders a rule entry as one preamble line. Rules are normally
// strings; anything else is kept as its JSON form.
func stringify(entry any) string {
	if s, ok := entry.(string); ok {
		return s
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return ""
	}
	return string(raw)
}
