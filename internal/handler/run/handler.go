package run

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/prompt-manim/backend/internal/model/animation"
	"github.com/prompt-manim/backend/pkg/utils"
)

// Handler 动画运行记录的HTTP处理器
type Handler struct {
	runs animation.Store
}

// New 创建run处理器
func New(runs animation.Store) *Handler {
	return &Handler{runs: runs}
}

// RegisterRoutes 注册run相关的路由。submitLimit 只包在创建接口上，
// 查询接口不限流。
func (h *Handler) RegisterRoutes(r chi.Router, submitLimit func(http.Handler) http.Handler) {
	if submitLimit != nil {
		r.With(submitLimit).Post("/runs", h.handleCreateRun)
	} else {
		r.Post("/runs", h.handleCreateRun)
	}
	r.Get("/runs/{runID}", h.handleGetRun)
	r.Get("/runs/{runID}/video", h.handleGetVideo)
}

// handleCreateRun 创建一次新的生成运行
func (h *Handler) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Prompt string `json:"prompt"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	prompt := strings.TrimSpace(payload.Prompt)
	if prompt == "" {
		utils.RespondError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	run, err := h.runs.Create(prompt)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, run)
}

// handleGetRun 查询运行状态与结果
func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.Get(chi.URLParam(r, "runID"))
	if errors.Is(err, animation.ErrRunNotFound) {
		utils.RespondError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, run)
}

// handleGetVideo 仅在运行成功且文件仍存在时返回视频。
func (h *Handler) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.Get(chi.URLParam(r, "runID"))
	if errors.Is(err, animation.ErrRunNotFound) {
		utils.RespondError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if run.Outcome == nil || !run.Outcome.Success || run.Outcome.ArtifactPath == "" {
		utils.RespondError(w, http.StatusNotFound, "run has no video artifact")
		return
	}
	if _, err := os.Stat(run.Outcome.ArtifactPath); err != nil {
		utils.RespondError(w, http.StatusGone, "video artifact no longer on disk")
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	http.ServeFile(w, r, run.Outcome.ArtifactPath)
}
