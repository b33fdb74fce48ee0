package chat

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	chatmodel "github.com/atomchat/atom/backend/internal/model/chat"
	"github.com/atomchat/atom/backend/internal/service/ai"
	chatService "github.com/atomchat/atom/backend/internal/service/chat"
	"github.com/atomchat/atom/backend/pkg/utils"
)

const maxUploadBytes = 32 << 20

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc     *chatService.Service
	imageLimits ai.ImageLimits
}

// New 创建聊天处理器，imageLimits 限制上传图片的长边与像素总数
func New(chatSvc *chatService.Service, imageLimits ai.ImageLimits) *Handler {
	return &Handler{
		chatSvc:     chatSvc,
		imageLimits: imageLimits,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Route("/session/{sessionID}", func(sr chi.Router) {
		sr.Get("/", h.handleGetSession)
		sr.Delete("/", h.handleDeleteSession)
		sr.Post("/turn", h.handleTurn)
		sr.Get("/audio", h.handleAudio)
	})
}

type audioStatus struct {
	Available bool   `json:"available"`
	URL       string `json:"url,omitempty"`
	Error     string `json:"error,omitempty"`
}

type turnResponse struct {
	Text  string          `json:"text"`
	Route chatmodel.Route `json:"route"`
	Audio audioStatus     `json:"audio"`
}

type sessionResponse struct {
	chatmodel.Session
	History []chatmodel.Message `json:"history"`
}

// handleCreateSession 创建并初始化会话
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PersonaID string `json:"personaId"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.chatSvc.CreateSession(r.Context(), payload.PersonaID)
	switch {
	case errors.Is(err, chatService.ErrPersonaRequired):
		utils.RespondError(w, http.StatusBadRequest, "personaId is required")
		return
	case errors.Is(err, chatService.ErrPersonaNotFound):
		utils.RespondError(w, http.StatusBadRequest, "persona not found")
		return
	case err != nil:
		log.Printf("[chat] create session failed: %v", err)
		utils.RespondError(w, http.StatusBadGateway, "failed to start conversation")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, session.View())
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}

	history := session.History()
	if history == nil {
		history = []chatmodel.Message{}
	}
	utils.RespondJSON(w, http.StatusOK, sessionResponse{Session: session.View(), History: history})
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTurn 处理一轮对话：JSON {text} 或 multipart（text + image）
func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}

	input, status, err := h.parseTurn(w, r)
	if err != nil {
		utils.RespondError(w, status, err.Error())
		return
	}

	out, err := session.Respond(r.Context(), input)
	if err != nil {
		log.Printf("[chat] turn failed for session %s: %v", session.ID(), err)
		status := http.StatusInternalServerError
		if errors.Is(err, chatService.ErrInference) {
			status = http.StatusBadGateway
		}
		utils.RespondError(w, status, "model request failed")
		return
	}

	resp := turnResponse{Text: out.Text, Route: out.Route}
	switch {
	case out.AudioID != "":
		resp.Audio = audioStatus{Available: true, URL: strings.TrimSuffix(r.URL.Path, "/turn") + "/audio"}
	case out.AudioError != "":
		resp.Audio = audioStatus{Error: out.AudioError}
	}

	utils.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handler) parseTurn(w http.ResponseWriter, r *http.Request) (chatmodel.TurnInput, int, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType != "multipart/form-data" {
		var payload struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			return chatmodel.TurnInput{}, http.StatusBadRequest, errors.New("invalid request body")
		}
		return chatmodel.TurnInput{Text: payload.Text}, 0, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return chatmodel.TurnInput{}, http.StatusBadRequest, errors.New("failed to parse multipart form: " + err.Error())
	}
	defer r.MultipartForm.RemoveAll()

	input := chatmodel.TurnInput{Text: r.FormValue("text")}

	file, _, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return input, 0, nil
	}
	if err != nil {
		return chatmodel.TurnInput{}, http.StatusBadRequest, errors.New("invalid image upload")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return chatmodel.TurnInput{}, http.StatusBadRequest, errors.New("failed to read image upload")
	}

	img, err := ai.PrepareImage(data, h.imageLimits)
	if errors.Is(err, ai.ErrImageTooLarge) {
		return chatmodel.TurnInput{}, http.StatusRequestEntityTooLarge, err
	}
	if errors.Is(err, ai.ErrUnsupportedImage) {
		return chatmodel.TurnInput{}, http.StatusUnsupportedMediaType, err
	}
	if err != nil {
		return chatmodel.TurnInput{}, http.StatusBadRequest, err
	}

	input.Image = &img
	return input, 0, nil
}

// handleAudio 播放最新回复的语音
func (h *Handler) handleAudio(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}

	data, err := session.ReadAudio()
	switch {
	case errors.Is(err, chatService.ErrNoAudio):
		utils.RespondError(w, http.StatusNotFound, "no audio")
		return
	case errors.Is(err, chatService.ErrAudioMissing):
		utils.RespondError(w, http.StatusGone, "audio artifact lost")
		return
	case err != nil:
		log.Printf("[chat] failed to read audio for session %s: %v", session.ID(), err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to read audio")
		return
	}

	utils.RespondAudio(w, "audio/mpeg", data)
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*chatService.Session, bool) {
	session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return session, true
}
