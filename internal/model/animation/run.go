package animation

import "time"

// Stage identifies where a run currently is in the generation pipeline.
type Stage string

const (
	StageIdle       Stage = "idle"
	StagePlanning   Stage = "planning"
	StageGenerating Stage = "generating"
	StageSanitizing Stage = "sanitizing"
	StageRendering  Stage = "rendering"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// FailureKind classifies why a run failed.
type FailureKind string

const (
	FailurePlan            FailureKind = "plan_failed"
	FailureCodeGen         FailureKind = "codegen_failed"
	FailureNoScene         FailureKind = "no_scene"
	FailureRenderTimeout   FailureKind = "render_timeout"
	FailureRender          FailureKind = "render_failed"
	FailureArtifactMissing FailureKind = "artifact_missing"
)

// TokenUsage 记录一次运行中两次模型调用的 token 消耗与费用估算。
type TokenUsage struct {
	PlanInputTokens  int     `json:"planInputTokens"`
	PlanOutputTokens int     `json:"planOutputTokens"`
	CodeInputTokens  int     `json:"codeInputTokens"`
	CodeOutputTokens int     `json:"codeOutputTokens"`
	TotalInput       int     `json:"totalInputTokens"`
	TotalOutput      int     `json:"totalOutputTokens"`
	CostUSD          float64 `json:"costUsd"`
}

// Outcome is the terminal result of a run: either a rendered artifact or a
// classified failure. Plan and Code are kept on failure too, for debugging.
type Outcome struct {
	Success      bool        `json:"success"`
	Plan         string      `json:"plan,omitempty"`
	Code         string      `json:"code,omitempty"`
	SceneName    string      `json:"sceneName,omitempty"`
	ArtifactPath string      `json:"artifactPath,omitempty"`
	RenderLog    string      `json:"renderLog,omitempty"`
	FailureKind  FailureKind `json:"failureKind,omitempty"`
	Error        string      `json:"error,omitempty"`
	Usage        TokenUsage  `json:"usage"`
}

// Run captures a single prompt→plan→code→render pass.
type Run struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	Stage     Stage     `json:"stage"`
	CreatedAt time.Time `json:"createdAt"`
	Outcome   *Outcome  `json:"outcome,omitempty"`
}

// Finished reports whether the run reached a terminal stage.
func (r Run) Finished() bool {
	return r.Stage == StageDone || r.Stage == StageFailed
}
