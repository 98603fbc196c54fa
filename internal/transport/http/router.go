package http

import (
	"net/http"
	"time"

	"github.com/cwrk-planet/chat-service/internal/security"
	httpmw "github.com/cwrk-planet/chat-service/internal/transport/http/middleware"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Deps struct {
	Handler *Handler
	Auth    security.Authenticator
	// WS — обработчик апгрейда; висит вне таймаута запросов.
	WS http.HandlerFunc

	AllowedOrigins []string
	RequestTimeout time.Duration
}

func NewRouter(d Deps) http.Handler {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}
	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(httpmw.EchoRequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(httpmw.RequestContextLogger)
	r.Use(httpmw.RequestLogger)
	r.Use(middlewareChi.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", httpmw.HeaderRequestID, "X-User-ID", "X-User-Name", "X-User-Role", "X-User-Email"},
		ExposedHeaders:   []string{httpmw.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if d.WS != nil {
		r.Get("/ws", d.WS)
	}

	h := d.Handler
	r.Group(func(pr chi.Router) {
		pr.Use(httpmw.Auth(d.Auth))
		pr.Use(middlewareChi.Timeout(d.RequestTimeout))

		pr.Route("/channels", func(rc chi.Router) {
			rc.Get("/", h.ListChannels)
			rc.Post("/", h.CreateChannel)
			rc.Post("/direct", h.DirectChannel)
			rc.Post("/system", h.SystemChannel)

			rc.Route("/{id}", func(rr chi.Router) {
				rr.Get("/", h.GetChannel)
				rr.Delete("/", h.ArchiveChannel)
				rr.Get("/members", h.ListMembers)
				rr.Post("/members", h.AddMember)
				rr.Delete("/members/{userID}", h.RemoveMember)
				rr.Post("/read", h.MarkRead)
				rr.Get("/messages", h.ListMessages)
				rr.Post("/messages", h.SendMessage)
				rr.Get("/typing", h.Typing)
			})
		})

		pr.Route("/messages/{id}", func(rm chi.Router) {
			rm.Get("/", h.GetMessage)
			rm.Put("/", h.EditMessage)
			rm.Delete("/", h.DeleteMessage)
			rm.Post("/reactions", h.AddReaction)
			rm.Delete("/reactions/{emoji}", h.RemoveReaction)
			rm.Post("/attachments", h.AddAttachment)
		})

		pr.Delete("/attachments/{id}", h.DeleteAttachment)
		pr.Get("/notifications", h.ListNotifications)
		pr.Post("/notifications/{id}/read", h.MarkNotificationRead)
	})

	return r
}
