package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Routes struct {
	Poll     *PollHandler
	Vote     *VoteHandler
	WS       http.Handler
	Static   http.Handler
	Sessions func(http.Handler) http.Handler
}

func NewHandler(routes Routes) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Handle("/ws", routes.WS)

	r.Route("/api", func(r chi.Router) {
		r.Route("/poll", func(r chi.Router) {
			r.Get("/", routes.Poll.GetPoll)
			r.Post("/votes", routes.Vote.VoteOnPoll)
		})
	})

	if routes.Static != nil {
		static := routes.Static
		if routes.Sessions != nil {
			static = routes.Sessions(static)
		}
		r.Handle("/*", static)
	}

	return r
}
