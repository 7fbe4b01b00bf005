package ws

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/prompt-manim/backend/internal/model/animation"
	"github.com/prompt-manim/backend/internal/service/pipeline"
)

// Handler 通过WebSocket推送运行进度，是SSE端点的备用传输方式。
type Handler struct {
	pipe     *pipeline.Pipeline
	runs     animation.Store
	upgrader websocket.Upgrader
}

// New 创建WebSocket处理器
func New(pipe *pipeline.Pipeline, runs animation.Store) *Handler {
	return &Handler{
		pipe: pipe,
		runs: runs,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/runs/{runID}/ws", h.handleWebSocket)
}

type outboundMessage struct {
	Event   string          `json:"event"`
	RunID   string          `json:"runId,omitempty"`
	Stage   animation.Stage `json:"stage,omitempty"`
	Message string          `json:"message,omitempty"`
	Run     *animation.Run  `json:"run,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed for run=%s: %v", runID, err)
		return
	}
	defer conn.Close()

	send := func(msg outboundMessage) {
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("[ws] write failed for run=%s: %v", runID, err)
		}
	}

	run, err := h.runs.Get(runID)
	if errors.Is(err, animation.ErrRunNotFound) {
		send(outboundMessage{Event: "error", RunID: runID, Error: "run not found"})
		return
	}
	if err != nil {
		send(outboundMessage{Event: "error", RunID: runID, Error: err.Error()})
		return
	}

	if run.Finished() {
		send(outboundMessage{Event: "result", RunID: runID, Stage: run.Stage, Run: &run})
		return
	}

	if _, err := h.runs.Claim(runID); err != nil {
		send(outboundMessage{Event: "error", RunID: runID, Error: err.Error()})
		return
	}

	final := h.pipe.Execute(r.Context(), run, func(e pipeline.Event) {
		send(outboundMessage{Event: "stage", RunID: runID, Stage: e.Stage, Message: e.Message})
	})

	send(outboundMessage{Event: "result", RunID: runID, Stage: final.Stage, Run: &final})
	log.Printf("[ws] completed run=%s stage=%s", runID, final.Stage)
}
