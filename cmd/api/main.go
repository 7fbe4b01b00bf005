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
	_ "go.uber.org/automaxprocs"

	"github.com/prompt-manim/backend/internal/config"
	"github.com/prompt-manim/backend/internal/handler"
	"github.com/prompt-manim/backend/internal/model/animation"
	"github.com/prompt-manim/backend/internal/service/ai"
	"github.com/prompt-manim/backend/internal/service/pipeline"
	"github.com/prompt-manim/backend/internal/service/render"
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

	// Every run needs the model; without credentials the service
	// cannot do anything useful, so this is fatal rather than a
	// degraded mode.
	if !cfg.AI.Enabled() {
		log.Fatal("missing Ark credentials: set ARK_API_KEY (or ARK_ACCESS_KEY + ARK_SECRET_KEY) and ARK_MODEL")
	}

	templates, err := ai.LoadTemplates(cfg.Prompts)
	if err != nil {
		log.Fatalf("failed to load prompt templates: %v", err)
	}

	aiService, err := ai.NewService(ctx, cfg.AI, templates)
	if err != nil {
		log.Fatalf("failed to initialize AI service: %v", err)
	}
	log.Println("AI service initialized successfully")

	renderer := render.NewRenderer(cfg.Render)
	log.Printf("renderer: command=%s quality=%s timeout=%s workdir=%s",
		cfg.Render.Command, cfg.Render.QualityFlag, cfg.Render.Timeout, cfg.Render.WorkDir)

	runs := animation.NewMemoryStore()
	pipe := pipeline.New(aiService, aiService, renderer, runs)

	router := handler.NewRouter(pipe, runs)

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

	log.Printf("Prompt-Manim backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
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
