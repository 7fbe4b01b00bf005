package stream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/prompt-manim/backend/internal/model/animation"
	"github.com/prompt-manim/backend/internal/service/pipeline"
	"github.com/prompt-manim/backend/pkg/utils"
)

// Handler executes the generation pipeline while streaming stage
// updates via Server-Sent Events. Each stage can take seconds to
// minutes, so the client needs a liveness signal before the result.
type Handler struct {
	pipe *pipeline.Pipeline
	runs animation.Store
}

// New creates a new stream handler.
func New(pipe *pipeline.Pipeline, runs animation.Store) *Handler {
	return &Handler{pipe: pipe, runs: runs}
}

// StreamResponse represents a streaming response chunk.
type StreamResponse struct {
	Event   string          `json:"event"`
	RunID   string          `json:"runId,omitempty"`
	Stage   animation.Stage `json:"stage,omitempty"`
	Message string          `json:"message,omitempty"`
	Run     *animation.Run  `json:"run,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// HandleStreamRequest runs a claimed run to completion, emitting one
// event per stage transition and a final result event.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, runID string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)

	run, err := h.runs.Get(runID)
	if errors.Is(err, animation.ErrRunNotFound) {
		h.sendError(w, flusher, runID, "run not found")
		return err
	}
	if err != nil {
		h.sendError(w, flusher, runID, err.Error())
		return err
	}

	// A finished run just replays its stored result; reconnecting
	// clients should not trigger a second execution.
	if run.Finished() {
		h.sendResult(w, flusher, run)
		return nil
	}

	if _, err := h.runs.Claim(runID); err != nil {
		h.sendError(w, flusher, runID, err.Error())
		return err
	}

	final := h.pipe.Execute(ctx, run, func(e pipeline.Event) {
		utils.SendSSEChunk(w, flusher, StreamResponse{
			Event:   "stage",
			RunID:   runID,
			Stage:   e.Stage,
			Message: e.Message,
		})
	})

	h.sendResult(w, flusher, final)
	log.Printf("[stream] completed run=%s stage=%s", runID, final.Stage)
	return nil
}

func (h *Handler) sendResult(w http.ResponseWriter, flusher http.Flusher, run animation.Run) {
	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event: "result",
		RunID: run.ID,
		Stage: run.Stage,
		Run:   &run,
	})
}

func (h *Handler) sendError(w http.ResponseWriter, flusher http.Flusher, runID, message string) {
	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event: "error",
		RunID: runID,
		Error: message,
	})
}
