package chat

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tbonnaves/chat-relay/internal/model/chat"
)

const transcriptExt = ".json"

// separators maps path-separator characters to underscores so an identifier
// can never escape the storage root. The mapping is one-way: identifiers that
// normalise identically share a transcript, an accepted limitation.
var separators = strings.NewReplacer("/", "_", "\\", "_")

// Store persists one JSON transcript per session under a root directory.
// It is the sole arbiter of durable access: no other component reads or
// writes the files.
type Store struct {
	root string
}

// NewStore returns a store rooted at dir. The directory is created lazily on
// the first save.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

func (s *Store) path(id string) string {
	return filepath.Join(s.root, separators.Replace(id)+transcriptExt)
}

// Exists reports whether a durable transcript exists for the session.
func (s *Store) Exists(id string) bool {
	_, err := os.Stat(s.path(id))
	return err == nil
}

// Load returns the stored record for a session, or an empty record when the
// session has never been persisted. An undecodable transcript yields a
// *chat.CorruptionError.
func (s *Store) Load(_ context.Context, id string) (chat.Record, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return chat.Record{Messages: []chat.Message{}}, nil
		}
		return chat.Record{}, fmt.Errorf("read transcript for %q: %w", id, err)
	}
	return chat.DecodeRecord(id, data)
}

// AppendAndSave replaces the stored transcript wholesale with the supplied
// message list; the caller passes prior history plus the new turns. Name
// resolution: an explicitly requested name wins; otherwise an existing stored
// name is kept, best effort. A name buried in an unreadable file counts as
// absent so a corrupt transcript stays overwritable.
func (s *Store) AppendAndSave(_ context.Context, id string, messages []chat.Message, requestedName *string) error {
	name := requestedName
	if name == nil {
		name = s.existingName(id)
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create storage root: %w", err)
	}

	data, err := chat.EncodeRecord(chat.Record{Name: name, Messages: messages})
	if err != nil {
		return err
	}

	// Whole-file replace through a rename so a crash mid-write never leaves
	// a torn transcript readable as valid.
	target := s.path(id)
	tmp := target + ".tmp-" + uuid.NewString()
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write transcript for %q: %w", id, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace transcript for %q: %w", id, err)
	}

	log.Debug().Str("session", id).Int("messages", len(messages)).Msg("transcript saved")
	return nil
}

func (s *Store) existingName(id string) *string {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil
	}
	record, err := chat.DecodeRecord(id, data)
	if err != nil {
		return nil
	}
	return record.Name
}

// List enumerates every stored session. Transcripts that fail to decode are
// listed with no name rather than failing the whole listing.
func (s *Store) List(_ context.Context) ([]chat.SessionInfo, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []chat.SessionInfo{}, nil
		}
		return nil, fmt.Errorf("read storage root: %w", err)
	}

	sessions := make([]chat.SessionInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), transcriptExt) {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), transcriptExt)
		info := chat.SessionInfo{ID: id}
		if data, err := os.ReadFile(filepath.Join(s.root, entry.Name())); err == nil {
			if record, err := chat.DecodeRecord(id, data); err == nil {
				info.Name = record.Name
			}
		}
		sessions = append(sessions, info)
	}
	return sessions, nil
}
