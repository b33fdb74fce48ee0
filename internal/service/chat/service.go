package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/atomchat/atom/backend/internal/model/persona"
	"github.com/atomchat/atom/backend/internal/service/ai"
)

var (
	ErrPersonaRequired = errors.New("persona id is required")
	ErrPersonaNotFound = errors.New("persona not found")
	ErrSessionNotFound = errors.New("session not found")
)

const defaultMaxActive = 256

// Options configures the session registry.
type Options struct {
	// MaxActive bounds live sessions; the least recently used one is closed
	// when the bound is exceeded.
	MaxActive int
	// NewConversation creates an unprimed conversation for each session.
	NewConversation func() ai.Conversation
	Vision          ai.Vision
	Speech          SpeechSynthesizer
	Artifacts       ArtifactStore
	Language        string
}

// Service keeps the live sessions of the process.
type Service struct {
	personas persona.Store
	opts     Options
	sessions *lru.Cache[string, *Session]
}

// NewService creates an in-memory session registry.
func NewService(personas persona.Store, opts Options) (*Service, error) {
	if personas == nil {
		return nil, errors.New("persona store is required")
	}
	if opts.NewConversation == nil || opts.Vision == nil {
		return nil, errors.New("conversation factory and vision capability are required")
	}
	if opts.MaxActive <= 0 {
		opts.MaxActive = defaultMaxActive
	}

	sessions, err := lru.NewWithEvict(opts.MaxActive, func(id string, session *Session) {
		session.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}

	return &Service{
		personas: personas,
		opts:     opts,
		sessions: sessions,
	}, nil
}

// CreateSession primes a new session for the persona and registers it.
func (s *Service) CreateSession(ctx context.Context, personaID string) (*Session, error) {
	personaID = strings.TrimSpace(personaID)
	if personaID == "" {
		return nil, ErrPersonaRequired
	}

	p, ok := s.personas.FindByID(personaID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPersonaNotFound, personaID)
	}

	session, err := NewSession(ctx, p, Deps{
		Conversation: s.opts.NewConversation(),
		Vision:       s.opts.Vision,
		Speech:       s.opts.Speech,
		Artifacts:    s.opts.Artifacts,
		Language:     s.opts.Language,
	})
	if err != nil {
		return nil, err
	}

	if evicted := s.sessions.Add(session.ID(), session); evicted {
		log.Printf("[chat] session limit %d reached, evicted least recently used", s.opts.MaxActive)
	}
	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (*Session, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// DeleteSession closes and forgets a session.
func (s *Service) DeleteSession(_ context.Context, sessionID string) error {
	if !s.sessions.Remove(sessionID) {
		return ErrSessionNotFound
	}
	return nil
}

// Len returns the number of live sessions.
func (s *Service) Len() int {
	return s.sessions.Len()
}

// Close closes every session.
func (s *Service) Close() {
	s.sessions.Purge()
}
