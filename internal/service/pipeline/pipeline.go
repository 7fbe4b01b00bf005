// Package pipeline drives one run through its stages: planning,
// code generation, sanitizing, rendering. Stage transitions are
// published to an observer so transport handlers (SSE, websocket) can
// give the user a liveness signal during the slow stages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/prompt-manim/backend/internal/model/animation"
	"github.com/prompt-manim/backend/internal/service/ai"
	"github.com/prompt-manim/backend/internal/service/render"
	"github.com/prompt-manim/backend/internal/service/sanitize"
)

// Ark pricing, USD per million tokens.
const (
	inputCostPerMillion  = 0.5
	outputCostPerMillion = 3.0
)

// Planner produces an animation plan from a user prompt.
type Planner interface {
	GeneratePlan(ctx context.Context, userPrompt string) (ai.Result, error)
}

// Generator produces Manim source from a plan.
type Generator interface {
	GenerateCode(ctx context.Context, plan, userPrompt, sceneName string) (ai.Result, error)
}

// Renderer turns sanitized source into a video artifact.
type Renderer interface {
	Render(ctx context.Context, code, sceneName, runID string) (render.Result, error)
}

// Event is one observable stage transition.
type Event struct {
	Stage   animation.Stage `json:"stage"`
	Message string          `json:"message,omitempty"`
}

// Observer receives stage transitions as they happen.
type Observer func(Event)

// Pipeline wires the run stages together. It holds no per-run state:
// concurrent Execute calls are independent.
type Pipeline struct {
	planner   Planner
	generator Generator
	renderer  Renderer
	runs      animation.Store
}

// New assembles a pipeline over the supplied collaborators.
func New(planner Planner, generator Generator, renderer Renderer, runs animation.Store) *Pipeline {
	return &Pipeline{
		planner:   planner,
		generator: generator,
		renderer:  renderer,
		runs:      runs,
	}
}

// Execute runs the full prompt→plan→code→render pass for a previously
// created (and claimed) run. The terminal outcome is stored and the
// final run record returned. Execute never returns an error: every
// failure mode is folded into the outcome.
func (p *Pipeline) Execute(ctx context.Context, run animation.Run, observe Observer) animation.Run {
	if observe == nil {
		observe = func(Event) {}
	}

	outcome := p.execute(ctx, run, observe)

	final, err := p.runs.Complete(run.ID, outcome)
	if err != nil {
		// The store entry vanished mid-run; nothing to do but report.
		log.Printf("[pipeline] run=%s failed to store outcome: %v", run.ID, err)
		final = run
		final.Outcome = &outcome
		if outcome.Success {
			final.Stage = animation.StageDone
		} else {
			final.Stage = animation.StageFailed
		}
	}

	if outcome.Success {
		observe(Event{Stage: animation.StageDone, Message: "animation ready"})
	} else {
		observe(Event{Stage: animation.StageFailed, Message: outcome.Error})
	}
	return final
}

func (p *Pipeline) execute(ctx context.Context, run animation.Run, observe Observer) animation.Outcome {
	outcome := animation.Outcome{SceneName: newSceneName(run.ID)}

	p.enterStage(run.ID, animation.StagePlanning, "creating animation plan", observe)
	plan, err := p.planner.GeneratePlan(ctx, run.Prompt)
	if err != nil {
		return fail(outcome, animation.FailurePlan, err)
	}
	outcome.Plan = plan.Text
	outcome.Usage.PlanInputTokens = plan.InputTokens
	outcome.Usage.PlanOutputTokens = plan.OutputTokens

	p.enterStage(run.ID, animation.StageGenerating, "generating Manim code", observe)
	code, err := p.generator.GenerateCode(ctx, plan.Text, run.Prompt, outcome.SceneName)
	if err != nil {
		return fail(outcome, animation.FailureCodeGen, err)
	}
	outcome.Usage.CodeInputTokens = code.InputTokens
	outcome.Usage.CodeOutputTokens = code.OutputTokens

	p.enterStage(run.ID, animation.StageSanitizing, "checking generated code", observe)
	sanitized, err := sanitize.Sanitize(code.Text, outcome.SceneName)
	if err != nil {
		outcome.Code = sanitize.Clean(code.Text)
		return fail(outcome, animation.FailureNoScene, err)
	}
	outcome.Code = sanitized

	p.enterStage(run.ID, animation.StageRendering, "rendering animation video", observe)
	result, err := p.renderer.Render(ctx, sanitized, outcome.SceneName, run.ID)
	if err != nil {
		kind := animation.FailureRender
		var cmdErr *render.CommandError
		switch {
		case errors.Is(err, render.ErrTimeout):
			kind = animation.FailureRenderTimeout
		case errors.Is(err, render.ErrArtifactMissing):
			kind = animation.FailureArtifactMissing
		case errors.As(err, &cmdErr):
			outcome.RenderLog = cmdErr.Output
		}
		return fail(outcome, kind, err)
	}

	outcome.Success = true
	outcome.ArtifactPath = result.ArtifactPath
	outcome.RenderLog = result.Log
	finishUsage(&outcome.Usage)
	log.Printf("[pipeline] run=%s succeeded, artifact=%s cost=$%.6f", run.ID, result.ArtifactPath, outcome.Usage.CostUSD)
	return outcome
}

func (p *Pipeline) enterStage(runID string, stage animation.Stage, message string, observe Observer) {
	if err := p.runs.SetStage(runID, stage); err != nil {
		log.Printf("[pipeline] run=%s failed to record stage %s: %v", runID, stage, err)
	}
	observe(Event{Stage: stage, Message: message})
}

func fail(outcome animation.Outcome, kind animation.FailureKind, err error) animation.Outcome {
	outcome.Success = false
	outcome.FailureKind = kind
	outcome.Error = err.Error()
	finishUsage(&outcome.Usage)
	return outcome
}

func finishUsage(u *animation.TokenUsage) {
	u.TotalInput = u.PlanInputTokens + u.CodeInputTokens
	u.TotalOutput = u.PlanOutputTokens + u.CodeOutputTokens
	u.CostUSD = float64(u.TotalInput)/1_000_000*inputCostPerMillion +
		float64(u.TotalOutput)/1_000_000*outputCostPerMillion
}

// newSceneName returns a per-run unique Python class name. The run id
// suffix keeps two runs started in the same second distinct.
func newSceneName(runID string) string {
	suffix := strings.ReplaceAll(runID, "-", "")
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return fmt.Sprintf("PromptScene_%s_%s", time.Now().Format("20060102_150405"), suffix)
}
