package persona

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atomchat/atom/backend/internal/model/persona"
	"github.com/atomchat/atom/backend/pkg/utils"
)

// Handler 暴露可用于创建会话的 persona，不包含 priming 文本
type Handler struct {
	personas persona.Store
}

// New 创建persona处理器
func New(personas persona.Store) *Handler {
	return &Handler{personas: personas}
}

// RegisterRoutes 注册persona相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/personas", func(r chi.Router) {
		r.Get("/", h.handleListPersonas)
		r.Get("/default", h.handleDefaultPersona)
		r.Get("/{personaID}", h.handleGetPersona)
	})
}

func (h *Handler) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.personas.List())
}

func (h *Handler) handleDefaultPersona(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.personas.Default())
}

func (h *Handler) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	p, ok := h.personas.FindByID(chi.URLParam(r, "personaID"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "persona not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, p)
}
