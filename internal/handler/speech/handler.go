package speech

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/atomchat/atom/backend/internal/model/speech"
	chatservice "github.com/atomchat/atom/backend/internal/service/chat"
	speechsvc "github.com/atomchat/atom/backend/internal/service/speech"
	"github.com/atomchat/atom/backend/pkg/utils"
)

// SpeechService 抽象语音业务，便于测试与替换实现
type SpeechService interface {
	SynthesizeSpeech(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error)
	Providers() []speech.Provider
}

// Handler 语音服务的HTTP处理器
type Handler struct {
	speechSvc SpeechService
	chatSvc   *chatservice.Service
}

// New 创建语音处理器，chatSvc 可为空
func New(speechSvc SpeechService, chatSvc *chatservice.Service) *Handler {
	return &Handler{
		speechSvc: speechSvc,
		chatSvc:   chatSvc,
	}
}

// RegisterRoutes 注册语音相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/speech", func(speechRouter chi.Router) {
		speechRouter.Post("/synthesize", h.handleSynthesize)
		speechRouter.Get("/health", h.handleHealth)
	})
}

// handleSynthesize 处理文本转语音请求，直接返回音频
func (h *Handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req speech.TTSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	if strings.TrimSpace(req.Voice) == "" {
		req.Voice = h.resolveVoiceFromSession(r.Context(), req.SessionID)
	}

	resp, err := h.speechSvc.SynthesizeSpeech(r.Context(), &req)
	if err != nil {
		log.Printf("[speech] TTS error: %v", err)
		status := http.StatusBadGateway
		if errors.Is(err, speechsvc.ErrEmptyText) {
			status = http.StatusBadRequest
		}
		utils.RespondError(w, status, "speech synthesis failed")
		return
	}

	format := resp.Format
	if format == "" || format == "mp3" {
		format = "mpeg"
	}
	w.Header().Set("X-Speech-Provider", string(resp.Provider))
	utils.RespondAudio(w, "audio/"+format, resp.AudioData)
}

func (h *Handler) resolveVoiceFromSession(ctx context.Context, sessionID string) string {
	if h.chatSvc == nil || strings.TrimSpace(sessionID) == "" {
		return ""
	}

	session, err := h.chatSvc.GetSession(ctx, strings.TrimSpace(sessionID))
	if err != nil {
		return ""
	}
	return session.Persona().VoiceID
}

// handleHealth 健康检查端点
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   "speech",
		"providers": h.speechSvc.Providers(),
	})
}
