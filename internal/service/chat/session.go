package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atomchat/atom/backend/internal/analysis/emotion"
	chatmodel "github.com/atomchat/atom/backend/internal/model/chat"
	"github.com/atomchat/atom/backend/internal/model/persona"
	speechmodel "github.com/atomchat/atom/backend/internal/model/speech"
	"github.com/atomchat/atom/backend/internal/service/ai"
	speechsvc "github.com/atomchat/atom/backend/internal/service/speech"
)

var (
	// ErrInference wraps failures of the conversational or multimodal model.
	ErrInference = errors.New("inference failed")
	// ErrNoAudio means the session never produced audio for its latest response.
	ErrNoAudio = errors.New("no audio")
	// ErrAudioMissing means audio was produced but its file is gone.
	ErrAudioMissing = errors.New("audio artifact lost")
	// ErrSpeechDisabled is reported when no synthesizer is configured.
	ErrSpeechDisabled = errors.New("speech synthesis disabled")
)

const maxAudioReadAttempts = 3

// SpeechSynthesizer turns text into audio bytes.
type SpeechSynthesizer interface {
	SynthesizeSpeech(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error)
}

// ArtifactStore keeps synthesized audio on scratch storage.
type ArtifactStore interface {
	Save(audio []byte, format string) (*speechmodel.Artifact, error)
	Read(artifact *speechmodel.Artifact) ([]byte, error)
	Remove(artifact *speechmodel.Artifact) error
}

// Deps are the capabilities a Session talks to.
type Deps struct {
	Conversation ai.Conversation
	Vision       ai.Vision
	Speech       SpeechSynthesizer
	Artifacts    ArtifactStore
	// Language is passed to the synthesizer, e.g. "en-US".
	Language string
}

// SpeechResult is the outcome of one synthesis attempt. Exactly one of
// Artifact and Err is set.
type SpeechResult struct {
	Artifact *speechmodel.Artifact
	Err      error
}

// OK reports whether an artifact was produced.
func (r SpeechResult) OK() bool {
	return r.Err == nil && r.Artifact != nil
}

// Session is one primed conversation plus its latest response and audio.
// Turns are serialised; read accessors may run alongside a turn.
type Session struct {
	id        string
	persona   persona.Persona
	createdAt time.Time

	conversation ai.Conversation
	vision       ai.Vision
	speech       SpeechSynthesizer
	artifacts    ArtifactStore
	language     string

	turnMu sync.Mutex

	mu             sync.RWMutex
	latestResponse string
	latestAudio    *speechmodel.Artifact
	closed         bool
}

// NewSession builds a session and sends the persona priming message once.
func NewSession(ctx context.Context, p persona.Persona, deps Deps) (*Session, error) {
	if deps.Conversation == nil || deps.Vision == nil {
		return nil, errors.New("session requires conversation and vision capabilities")
	}
	if deps.Speech != nil && deps.Artifacts == nil {
		return nil, errors.New("session speech requires an artifact store")
	}

	priming := strings.TrimSpace(p.PrimingMessage)
	if priming == "" {
		priming = persona.DefaultPrimingMessage
	}

	s := &Session{
		id:           uuid.NewString(),
		persona:      p,
		createdAt:    time.Now().UTC(),
		conversation: deps.Conversation,
		vision:       deps.Vision,
		speech:       deps.Speech,
		artifacts:    deps.Artifacts,
		language:     deps.Language,
	}

	if err := s.conversation.Prime(ctx, priming); err != nil {
		return nil, fmt.Errorf("%w: priming persona %s: %w", ErrInference, p.ID, err)
	}

	log.Printf("[session] created id=%s persona=%s", s.id, p.ID)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Persona returns the persona the session was primed with.
func (s *Session) Persona() persona.Persona { return s.persona }

// ProcessTurn routes the input to a capability and returns the full reply
// text. Image turns go to the multimodal model and never touch history.
func (s *Session) ProcessTurn(ctx context.Context, in chatmodel.TurnInput) (chatmodel.TurnOutput, error) {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	return s.processTurn(ctx, in)
}

func (s *Session) processTurn(ctx context.Context, in chatmodel.TurnInput) (chatmodel.TurnOutput, error) {
	text := strings.TrimSpace(in.Text)

	var (
		reply ai.Reply
		route chatmodel.Route
		err   error
	)

	switch {
	case in.Empty():
		return chatmodel.TurnOutput{Route: chatmodel.RouteNone}, nil
	case in.HasImage():
		route = chatmodel.RouteMultimodal
		reply, err = s.vision.Describe(ctx, text, *in.Image)
	default:
		route = chatmodel.RouteConversation
		reply, err = s.conversation.Send(ctx, text)
	}
	if err != nil {
		return chatmodel.TurnOutput{}, fmt.Errorf("%w: %s: %w", ErrInference, route, err)
	}

	full, err := reply.Collect()
	if err != nil {
		return chatmodel.TurnOutput{}, fmt.Errorf("%w: %s: %w", ErrInference, route, err)
	}

	log.Printf("[session] turn id=%s route=%s reply_len=%d", s.id, route, len(full))
	return chatmodel.TurnOutput{Text: full, Route: route}, nil
}

// SynthesizeSpeech renders text to a new audio artifact. It never returns an
// error directly; failures are carried in the result. Each successful call
// creates an artifact independent of earlier ones.
func (s *Session) SynthesizeSpeech(ctx context.Context, text string) SpeechResult {
	return s.synthesize(ctx, text, emotion.Analyze("", text))
}

func (s *Session) synthesize(ctx context.Context, text string, tone emotion.Decision) SpeechResult {
	if s.speech == nil {
		return SpeechResult{Err: ErrSpeechDisabled}
	}
	if strings.TrimSpace(text) == "" {
		return SpeechResult{Err: speechsvc.ErrEmptyText}
	}

	req := &speechmodel.TTSRequest{
		SessionID: s.id,
		Text:      text,
		Voice:     s.persona.VoiceID,
		Language:  s.language,
		Format:    "mp3",
	}
	if tone.Expressive() {
		req.Emotion = string(tone.Emotion)
		req.EmotionScale = tone.Scale
	}

	resp, err := s.speech.SynthesizeSpeech(ctx, req)
	if err != nil {
		return SpeechResult{Err: err}
	}
	if resp == nil || len(resp.AudioData) == 0 {
		return SpeechResult{Err: speechsvc.ErrEmptyAudio}
	}

	artifact, err := s.artifacts.Save(resp.AudioData, resp.Format)
	if err != nil {
		return SpeechResult{Err: err}
	}
	return SpeechResult{Artifact: artifact}
}

// Respond runs a turn, records the reply as the latest response and tries to
// voice it. Synthesis failure is logged and reported in AudioError while the
// text is still returned; the latest audio then refers to nothing. The reply
// and its audio become visible together once synthesis has finished.
func (s *Session) Respond(ctx context.Context, in chatmodel.TurnInput) (chatmodel.TurnOutput, error) {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	out, err := s.processTurn(ctx, in)
	if err != nil {
		return out, err
	}
	if out.Route == chatmodel.RouteNone {
		return out, nil
	}

	if strings.TrimSpace(out.Text) == "" {
		s.commit(out.Text, nil)
		return out, nil
	}

	result := s.synthesize(ctx, out.Text, emotion.Analyze(in.Text, out.Text))
	if !result.OK() {
		if !errors.Is(result.Err, ErrSpeechDisabled) {
			log.Printf("[speech] warning: synthesis failed for session %s: %v", s.id, result.Err)
		}
		out.AudioError = result.Err.Error()
		s.commit(out.Text, nil)
		return out, nil
	}

	if s.commit(out.Text, result.Artifact) {
		out.AudioID = result.Artifact.ID
	}
	return out, nil
}

// commit publishes a reply with its artifact and removes the superseded one.
// It reports false when the session is closed and the new artifact was dropped.
func (s *Session) commit(text string, next *speechmodel.Artifact) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.removeArtifact(next)
		return false
	}
	prev := s.latestAudio
	s.latestResponse = text
	s.latestAudio = next
	s.mu.Unlock()

	if prev != next {
		s.removeArtifact(prev)
	}
	return true
}

func (s *Session) removeArtifact(artifact *speechmodel.Artifact) {
	if artifact == nil || s.artifacts == nil {
		return
	}
	if err := s.artifacts.Remove(artifact); err != nil {
		log.Printf("[session] failed to remove artifact %s: %v", artifact.ID, err)
	}
}

// LatestResponse returns the text of the most recent completed turn.
func (s *Session) LatestResponse() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestResponse
}

// LatestAudio returns the artifact voicing the latest response, if any.
func (s *Session) LatestAudio() (*speechmodel.Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestAudio, s.latestAudio != nil
}

// ReadAudio returns the bytes of the latest artifact. ErrNoAudio means none
// was produced; ErrAudioMissing means it was produced but is gone. An artifact
// superseded while it was being read is not reported as lost.
func (s *Session) ReadAudio() ([]byte, error) {
	artifact, ok := s.LatestAudio()
	for attempt := 0; ; attempt++ {
		if !ok {
			return nil, ErrNoAudio
		}

		data, err := s.artifacts.Read(artifact)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, speechsvc.ErrArtifactMissing) {
			return nil, err
		}

		current, stillOK := s.LatestAudio()
		if (stillOK && current == artifact) || attempt >= maxAudioReadAttempts-1 {
			return nil, fmt.Errorf("%w: %s", ErrAudioMissing, artifact.ID)
		}
		artifact, ok = current, stillOK
	}
}

// History returns the conversational exchanges, priming first.
func (s *Session) History() []chatmodel.Message {
	return s.conversation.History()
}

// View is the JSON description of the session.
func (s *Session) View() chatmodel.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return chatmodel.Session{
		ID:             s.id,
		PersonaID:      s.persona.ID,
		CreatedAt:      s.createdAt,
		LatestResponse: s.latestResponse,
		HasAudio:       s.latestAudio != nil,
	}
}

// Close removes the scratch artifact. A turn still in flight drops its audio.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	prev := s.latestAudio
	s.latestAudio = nil
	s.mu.Unlock()

	s.removeArtifact(prev)
	log.Printf("[session] closed id=%s", s.id)
}
