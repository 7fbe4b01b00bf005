package handler

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	runHandler "github.com/prompt-manim/backend/internal/handler/run"
	streamHandler "github.com/prompt-manim/backend/internal/handler/stream"
	wsHandler "github.com/prompt-manim/backend/internal/handler/ws"
	middlewarePkg "github.com/prompt-manim/backend/internal/middleware"
	"github.com/prompt-manim/backend/internal/model/animation"
	"github.com/prompt-manim/backend/internal/service/pipeline"
	"github.com/prompt-manim/backend/web"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(pipe *pipeline.Pipeline, runs animation.Store) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	// Create handlers
	runH := runHandler.New(runs)
	streamH := streamHandler.New(pipe, runs)
	socketH := wsHandler.New(pipe, runs)

	// Run creation burns two model calls plus renderer CPU, so it is
	// the one route that gets rate limited.
	submitLimit := middlewarePkg.RateLimit(rate.Limit(0.2), 3)

	r.Route("/api", func(api chi.Router) {
		runH.RegisterRoutes(api, submitLimit)

		// Progress streaming: the pipeline executes inside this
		// request while stage events flow to the client.
		api.Get("/runs/{runID}/events", func(w http.ResponseWriter, r *http.Request) {
			runID := chi.URLParam(r, "runID")
			if err := streamH.HandleStreamRequest(r.Context(), w, runID); err != nil {
				log.Printf("[stream] error handling run=%s: %v", runID, err)
			}
		})

		socketH.RegisterRoutes(api)
	})

	// Embedded single-page client.
	r.Handle("/*", web.Handler())

	return r
}
