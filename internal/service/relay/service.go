// Package relay ties authorization, storage, conversation assembly and the
// upstream completion call into one request lifecycle. It exposes a plain
// function-call interface; HTTP semantics live in the handler layer.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"github.com/tbonnaves/chat-relay/internal/model/chat"
	"github.com/tbonnaves/chat-relay/internal/service/ai"
)

// ErrInvalidKey rejects a request whose key does not match the configured
// secret. Nothing is read or written before this check passes.
var ErrInvalidKey = errors.New("invalid access key")

// Store is the session persistence surface the relay depends on.
type Store interface {
	Load(ctx context.Context, id string) (chat.Record, error)
	AppendAndSave(ctx context.Context, id string, messages []chat.Message, requestedName *string) error
	List(ctx context.Context) ([]chat.SessionInfo, error)
}

// Upstream produces the reply text for an assembled conversation.
type Upstream interface {
	Complete(ctx context.Context, messages []*schema.Message) (string, error)
}

// RuleSource yields the preamble text, best effort.
type RuleSource interface {
	Rules() string
}

// SendRequest carries one relay invocation. Name, when set, becomes the
// session's stored display name.
type SendRequest struct {
	SessionID string
	Prompt    string
	Key       string
	Name      *string
}

// Service orchestrates the relay request lifecycle.
type Service struct {
	store    Store
	upstream Upstream
	rules    RuleSource
	secret   string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService wires the relay's collaborators together.
func NewService(store Store, upstream Upstream, rules RuleSource, secret string) *Service {
	return &Service{
		store:    store,
		upstream: upstream,
		rules:    rules,
		secret:   secret,
		locks:    make(map[string]*sync.Mutex),
	}
}

// sessionLock returns the mutex serialising writers of one session. Two
// concurrent sends to the same session would otherwise race load-modify-save
// and the loser's turn would vanish in the whole-file replace.
func (s *Service) sessionLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

func (s *Service) authorize(key string) error {
	if key != s.secret {
		return ErrInvalidKey
	}
	return nil
}

// Send relays a prompt through the upstream model and appends the exchange
// to the session transcript. It returns the accumulated reply text.
//
// The stored user turn carries the raw prompt, not the rule-augmented one,
// and an empty reply is persisted too, keeping turns paired. When
// persistence fails the reply is not returned: the transcript on disk is the
// record of truth, and the previous transcript survives intact thanks to the
// store's atomic replace, so the caller can retry.
func (s *Service) Send(ctx context.Context, req SendRequest) (string, error) {
	if err := s.authorize(req.Key); err != nil {
		return "", err
	}

	lock := s.sessionLock(req.SessionID)
	lock.Lock()
	defer lock.Unlock()

	record, err := s.store.Load(ctx, req.SessionID)
	if err != nil {
		return "", err
	}

	upstreamMessages := ai.BuildMessages(record.Messages, s.rules.Rules(), req.Prompt)

	reply, err := s.upstream.Complete(ctx, upstreamMessages)
	if err != nil {
		return "", fmt.Errorf("upstream completion for %q: %w", req.SessionID, err)
	}

	messages := append(record.Messages,
		chat.NewTurn(chat.RoleUser, req.Prompt),
		chat.NewTurn(chat.RoleAssistant, reply),
	)
	if err := s.store.AppendAndSave(ctx, req.SessionID, messages, req.Name); err != nil {
		log.Error().Err(err).Str("session", req.SessionID).Msg("failed to persist transcript")
		return "", fmt.Errorf("persist transcript for %q: %w", req.SessionID, err)
	}

	return reply, nil
}

// History returns the stored record verbatim, timestamp prefixes intact.
func (s *Service) History(ctx context.Context, sessionID, key string) (chat.Record, error) {
	if err := s.authorize(key); err != nil {
		return chat.Record{}, err
	}
	return s.store.Load(ctx, sessionID)
}

// Sessions lists every stored session with its display name.
func (s *Service) Sessions(ctx context.Context, key string) ([]chat.SessionInfo, error) {
	if err := s.authorize(key); err != nil {
		return nil, err
	}
	return s.store.List(ctx)
}
