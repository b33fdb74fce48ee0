package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/atomchat/atom/backend/internal/config"
	"github.com/atomchat/atom/backend/internal/handler"
	handlerSpeech "github.com/atomchat/atom/backend/internal/handler/speech"
	"github.com/atomchat/atom/backend/internal/model/persona"
	"github.com/atomchat/atom/backend/internal/service/ai"
	"github.com/atomchat/atom/backend/internal/service/chat"
	"github.com/atomchat/atom/backend/internal/service/speech"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if !cfg.AI.Enabled() {
		log.Fatalf("AI provider %q is not configured: set the model name and API key", cfg.AI.Provider)
	}

	chatModel, err := cfg.AI.NewChatModel(ctx)
	if err != nil {
		log.Fatalf("failed to initialize chat model: %v", err)
	}
	visionModel, err := cfg.AI.NewVisionModel(ctx)
	if err != nil {
		log.Fatalf("failed to initialize vision model: %v", err)
	}
	log.Printf("AI provider %s ready (chat=%s, vision=%s)", cfg.AI.Provider, cfg.AI.Model, cfg.AI.VisionModelName())

	personaStore := persona.NewMemoryStore(persona.Seed(cfg.Session.PrimingMessage))

	chatCfg := ai.ChatConfig{
		Stream:       cfg.AI.StreamResponse,
		HistoryLimit: cfg.AI.HistoryLimit,
	}
	opts := chat.Options{
		MaxActive: cfg.Session.MaxActive,
		NewConversation: func() ai.Conversation {
			return ai.NewChatSession(chatModel, chatCfg)
		},
		Vision:   ai.NewVisionClient(visionModel),
		Language: cfg.Speech.TTSLanguage,
	}

	// Initialize Speech service
	var speechHandlerSvc handlerSpeech.SpeechService
	if cfg.Speech.Enabled {
		speechCfg := cfg.Speech.ServiceConfig()
		artifacts, err := speech.NewArtifactStore(speechCfg.ArtifactDir)
		if err != nil {
			log.Fatalf("failed to prepare audio artifact store: %v", err)
		}

		speechService := speech.NewService(speechCfg)
		opts.Speech = speechService
		opts.Artifacts = artifacts
		speechHandlerSvc = speechService
		log.Printf("Speech service initialized (providers=%v, artifacts=%s)", speechService.Providers(), artifacts.Dir())
	} else {
		log.Println("speech disabled by SPEECH_ENABLED, replies will be text only")
	}

	chatService, err := chat.NewService(personaStore, opts)
	if err != nil {
		log.Fatalf("failed to initialize chat service: %v", err)
	}
	defer chatService.Close()

	router := handler.NewRouter(handler.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ImageLimits: ai.ImageLimits{
			MaxSide:   cfg.AI.ImageMaxSide,
			MaxPixels: cfg.AI.ImageMaxPixels,
		},
		Personas: personaStore,
		Chat:     chatService,
		Speech:   speechHandlerSvc,
	})

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Atom backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Printf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
