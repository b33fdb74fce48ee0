package chat_test

import (
	"context"
	"errors"
	"os"
	"testing"

	chatmodel "github.com/atomchat/atom/backend/internal/model/chat"
	"github.com/atomchat/atom/backend/internal/model/persona"
	"github.com/atomchat/atom/backend/internal/service/ai"
	chat "github.com/atomchat/atom/backend/internal/service/chat"
	speechsvc "github.com/atomchat/atom/backend/internal/service/speech"
)

func newTestService(t *testing.T, maxActive int) *chat.Service {
	t.Helper()

	artifacts, err := speechsvc.NewArtifactStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewArtifactStore err: %v", err)
	}

	svc, err := chat.NewService(persona.NewMemoryStore(persona.Seed("")), chat.Options{
		MaxActive: maxActive,
		NewConversation: func() ai.Conversation {
			return &fakeConversation{fragments: []string{"ok"}}
		},
		Vision:    &fakeVision{reply: "picture"},
		Speech:    &fakeSpeech{audio: []byte("mp3")},
		Artifacts: artifacts,
	})
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}

func TestServiceGetSession(t *testing.T) {
	svc := newTestService(t, 0)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, persona.DefaultID)
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	got, err := svc.GetSession(ctx, session.ID())
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}
	if got.ID() != session.ID() {
		t.Fatalf("unexpected session ID: got %s want %s", got.ID(), session.ID())
	}
	if got.Persona().ID != persona.DefaultID {
		t.Fatalf("unexpected persona ID: got %s", got.Persona().ID)
	}
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := newTestService(t, 0)

	if _, err := svc.GetSession(context.Background(), "missing"); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestServiceCreateSessionValidatesPersona(t *testing.T) {
	svc := newTestService(t, 0)
	ctx := context.Background()

	if _, err := svc.CreateSession(ctx, " "); !errors.Is(err, chat.ErrPersonaRequired) {
		t.Fatalf("expected ErrPersonaRequired, got %v", err)
	}
	if _, err := svc.CreateSession(ctx, "nobody"); !errors.Is(err, chat.ErrPersonaNotFound) {
		t.Fatalf("expected ErrPersonaNotFound, got %v", err)
	}
}

func TestServiceSessionsAreIsolated(t *testing.T) {
	svc := newTestService(t, 0)
	ctx := context.Background()

	a, _ := svc.CreateSession(ctx, persona.DefaultID)
	b, _ := svc.CreateSession(ctx, persona.DefaultID)

	if _, err := a.Respond(ctx, chatmodel.TurnInput{Text: "hello"}); err != nil {
		t.Fatalf("Respond err: %v", err)
	}
	if len(a.History()) != 2 || len(b.History()) != 0 {
		t.Fatalf("histories leaked: a=%d b=%d", len(a.History()), len(b.History()))
	}
	if b.LatestResponse() != "" {
		t.Fatal("latest response leaked between sessions")
	}
}

func TestServiceDeleteSessionRemovesArtifact(t *testing.T) {
	svc := newTestService(t, 0)
	ctx := context.Background()

	session, _ := svc.CreateSession(ctx, persona.DefaultID)
	if _, err := session.Respond(ctx, chatmodel.TurnInput{Text: "hello"}); err != nil {
		t.Fatalf("Respond err: %v", err)
	}
	artifact, ok := session.LatestAudio()
	if !ok {
		t.Fatal("expected audio artifact")
	}

	if err := svc.DeleteSession(ctx, session.ID()); err != nil {
		t.Fatalf("DeleteSession err: %v", err)
	}
	if _, err := os.Stat(artifact.Path); !os.IsNotExist(err) {
		t.Fatal("artifact should be removed with the session")
	}
	if err := svc.DeleteSession(ctx, session.ID()); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestServiceEvictsLeastRecentlyUsed(t *testing.T) {
	svc := newTestService(t, 2)
	ctx := context.Background()

	first, _ := svc.CreateSession(ctx, persona.DefaultID)
	second, _ := svc.CreateSession(ctx, persona.DefaultID)

	// touch first so second becomes the eviction candidate
	if _, err := svc.GetSession(ctx, first.ID()); err != nil {
		t.Fatalf("GetSession err: %v", err)
	}
	if _, err := svc.CreateSession(ctx, persona.DefaultID); err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	if svc.Len() != 2 {
		t.Fatalf("expected 2 live sessions, got %d", svc.Len())
	}
	if _, err := svc.GetSession(ctx, second.ID()); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected second session to be evicted, got %v", err)
	}
	if _, err := svc.GetSession(ctx, first.ID()); err != nil {
		t.Fatalf("first session should survive: %v", err)
	}
}
