package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/atomchat/atom/backend/internal/handler/chat"
	"github.com/atomchat/atom/backend/internal/handler/persona"
	"github.com/atomchat/atom/backend/internal/handler/speech"
	middlewarePkg "github.com/atomchat/atom/backend/internal/middleware"
	personaModel "github.com/atomchat/atom/backend/internal/model/persona"
	"github.com/atomchat/atom/backend/internal/service/ai"
	chatService "github.com/atomchat/atom/backend/internal/service/chat"
	"github.com/atomchat/atom/backend/pkg/utils"
)

// Options 路由依赖。Speech 为空时语音接口返回 503
type Options struct {
	AllowedOrigins []string
	ImageLimits    ai.ImageLimits
	Personas       personaModel.Store
	Chat           *chatService.Service
	Speech         speech.SpeechService
}

// NewRouter wires HTTP routes to core services.
func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(opts.AllowedOrigins))

	personaHandler := persona.New(opts.Personas)
	chatHandler := chat.New(opts.Chat, opts.ImageLimits)

	r.Route("/api", func(api chi.Router) {
		personaHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)

		if opts.Speech != nil {
			speech.New(opts.Speech, opts.Chat).RegisterRoutes(api)
		} else {
			api.HandleFunc("/speech/*", func(w http.ResponseWriter, _ *http.Request) {
				utils.RespondError(w, http.StatusServiceUnavailable, "speech service disabled")
			})
		}
	})

	return r
}
