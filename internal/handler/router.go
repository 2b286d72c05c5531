package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/caritasdigital/misionbot/internal/handler/ops"
	"github.com/caritasdigital/misionbot/internal/model/catalog"
	"github.com/caritasdigital/misionbot/internal/model/session"
	"github.com/caritasdigital/misionbot/internal/service/history"
)

// NewRouter wires the ops HTTP routes. The bot itself talks to Telegram;
// this surface exists for operators only.
func NewRouter(cat *catalog.Catalog, sessions session.Store, transcripts *history.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	opsHandler := ops.New(cat, sessions, transcripts)

	r.Route("/api", func(api chi.Router) {
		opsHandler.RegisterRoutes(api)
	})

	return r
}
