package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prompt-manim/backend/internal/model/animation"
	"github.com/prompt-manim/backend/internal/service/ai"
	"github.com/prompt-manim/backend/internal/service/pipeline"
	"github.com/prompt-manim/backend/internal/service/render"
)

const validScene = "from manim import *\n\nclass GeneratedScene(Scene):\n    def construct(self):\n        circle = Circle(color=BLUE)\n        self.play(FadeIn(circle))\n        self.wait()"

type fakePlanner struct {
	result ai.Result
	err    error
}

func (f *fakePlanner) GeneratePlan(context.Context, string) (ai.Result, error) {
	return f.result, f.err
}

type fakeGenerator struct {
	result ai.Result
	err    error
}

func (f *fakeGenerator) GenerateCode(_ context.Context, _, _, _ string) (ai.Result, error) {
	return f.result, f.err
}

type fakeRenderer struct {
	calls  int
	result render.Result
	err    error
	// onRender lets tests produce the artifact lazily per call.
	onRender func(runID string) (render.Result, error)
}

func (f *fakeRenderer) Render(_ context.Context, _, _, runID string) (render.Result, error) {
	f.calls++
	if f.onRender != nil {
		return f.onRender(runID)
	}
	return f.result, f.err
}

func newPipeline(t *testing.T, planner pipeline.Planner, generator pipeline.Generator, renderer pipeline.Renderer) (*pipeline.Pipeline, animation.Store, animation.Run) {
	t.Helper()
	store := animation.NewMemoryStore()
	run, err := store.Create("draw a blue circle that fades in")
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}
	return pipeline.New(planner, generator, renderer, store), store, run
}

func collectStages(events *[]pipeline.Event) pipeline.Observer {
	return func(e pipeline.Event) { *events = append(*events, e) }
}

func TestExecuteSuccess(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "scene_001.mp4")
	if err := os.WriteFile(artifact, []byte("mp4"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	planner := &fakePlanner{result: ai.Result{
		Text:         "1. Draw a circle\n2. Color it blue\n3. Fade it in",
		InputTokens:  100,
		OutputTokens: 50,
	}}
	generator := &fakeGenerator{result: ai.Result{Text: validScene, InputTokens: 200, OutputTokens: 300}}
	renderer := &fakeRenderer{result: render.Result{ArtifactPath: artifact, Log: "File ready"}}

	p, _, run := newPipeline(t, planner, generator, renderer)

	var events []pipeline.Event
	final := p.Execute(context.Background(), run, collectStages(&events))

	if final.Stage != animation.StageDone {
		t.Fatalf("stage = %s, want done", final.Stage)
	}
	outcome := final.Outcome
	if outcome == nil || !outcome.Success {
		t.Fatalf("expected success outcome, got %+v", outcome)
	}
	if !strings.HasSuffix(outcome.ArtifactPath, "scene_001.mp4") {
		t.Fatalf("artifact = %s", outcome.ArtifactPath)
	}
	if _, err := os.Stat(outcome.ArtifactPath); err != nil {
		t.Fatalf("artifact missing on disk: %v", err)
	}
	if outcome.Plan == "" || outcome.Code == "" {
		t.Fatal("plan and code must be carried in the outcome")
	}
	if !strings.Contains(outcome.Code, outcome.SceneName) {
		t.Fatalf("code not normalized to scene name %s", outcome.SceneName)
	}

	wantStages := []animation.Stage{
		animation.StagePlanning,
		animation.StageGenerating,
		animation.StageSanitizing,
		animation.StageRendering,
		animation.StageDone,
	}
	if len(events) != len(wantStages) {
		t.Fatalf("events = %v", events)
	}
	for i, want := range wantStages {
		if events[i].Stage != want {
			t.Fatalf("event[%d] = %s, want %s", i, events[i].Stage, want)
		}
	}

	usage := outcome.Usage
	if usage.TotalInput != 300 || usage.TotalOutput != 350 {
		t.Fatalf("usage totals wrong: %+v", usage)
	}
	wantCost := 300.0/1_000_000*0.5 + 350.0/1_000_000*3.0
	if diff := usage.CostUSD - wantCost; diff > 1e-12 || diff < -1e-12 {
		t.Fatalf("cost = %v, want %v", usage.CostUSD, wantCost)
	}
}

func TestExecuteNoSceneSkipsRender(t *testing.T) {
	planner := &fakePlanner{result: ai.Result{Text: "plan"}}
	generator := &fakeGenerator{result: ai.Result{Text: "I'm sorry, I can't write that scene."}}
	renderer := &fakeRenderer{}

	p, _, run := newPipeline(t, planner, generator, renderer)
	final := p.Execute(context.Background(), run, nil)

	if final.Stage != animation.StageFailed {
		t.Fatalf("stage = %s", final.Stage)
	}
	if final.Outcome.FailureKind != animation.FailureNoScene {
		t.Fatalf("kind = %s", final.Outcome.FailureKind)
	}
	if renderer.calls != 0 {
		t.Fatalf("renderer invoked %d times, want 0", renderer.calls)
	}
	// The plan is kept for debugging even on failure.
	if final.Outcome.Plan != "plan" {
		t.Fatalf("plan lost: %+v", final.Outcome)
	}
}

func TestExecutePlannerFailure(t *testing.T) {
	planner := &fakePlanner{err: errors.New("quota exceeded")}
	renderer := &fakeRenderer{}

	p, _, run := newPipeline(t, planner, &fakeGenerator{}, renderer)
	final := p.Execute(context.Background(), run, nil)

	if final.Outcome.FailureKind != animation.FailurePlan {
		t.Fatalf("kind = %s", final.Outcome.FailureKind)
	}
	if !strings.Contains(final.Outcome.Error, "quota exceeded") {
		t.Fatalf("error not surfaced verbatim: %q", final.Outcome.Error)
	}
	if renderer.calls != 0 {
		t.Fatal("renderer must not run after planner failure")
	}
}

func TestExecuteRenderFailureCarriesDiagnostics(t *testing.T) {
	planner := &fakePlanner{result: ai.Result{Text: "plan"}}
	generator := &fakeGenerator{result: ai.Result{Text: validScene}}
	renderer := &fakeRenderer{err: &render.CommandError{
		Output: "Traceback (most recent call last): SyntaxError",
		Err:    fmt.Errorf("exit status 1"),
	}}

	p, _, run := newPipeline(t, planner, generator, renderer)
	final := p.Execute(context.Background(), run, nil)

	outcome := final.Outcome
	if outcome.Success {
		t.Fatal("expected failure")
	}
	if outcome.FailureKind != animation.FailureRender {
		t.Fatalf("kind = %s", outcome.FailureKind)
	}
	if outcome.RenderLog == "" {
		t.Fatal("diagnostic output must be non-empty for render failures")
	}
	// Plan and code survive for the debugging tabs; no artifact though.
	if outcome.Plan == "" || outcome.Code == "" {
		t.Fatal("plan/code lost on render failure")
	}
	if outcome.ArtifactPath != "" {
		t.Fatalf("failure outcome must not carry an artifact: %s", outcome.ArtifactPath)
	}
}

func TestExecuteRenderTimeout(t *testing.T) {
	planner := &fakePlanner{result: ai.Result{Text: "plan"}}
	generator := &fakeGenerator{result: ai.Result{Text: validScene}}
	renderer := &fakeRenderer{err: fmt.Errorf("%w (budget 2m0s)", render.ErrTimeout)}

	p, _, run := newPipeline(t, planner, generator, renderer)
	final := p.Execute(context.Background(), run, nil)

	if final.Outcome.FailureKind != animation.FailureRenderTimeout {
		t.Fatalf("kind = %s", final.Outcome.FailureKind)
	}
}

func TestExecuteArtifactMissing(t *testing.T) {
	planner := &fakePlanner{result: ai.Result{Text: "plan"}}
	generator := &fakeGenerator{result: ai.Result{Text: validScene}}
	renderer := &fakeRenderer{err: render.ErrArtifactMissing}

	p, _, run := newPipeline(t, planner, generator, renderer)
	final := p.Execute(context.Background(), run, nil)

	outcome := final.Outcome
	if outcome.Success {
		t.Fatal("zero exit without artifact must never be success")
	}
	if outcome.FailureKind != animation.FailureArtifactMissing {
		t.Fatalf("kind = %s", outcome.FailureKind)
	}
	if outcome.ArtifactPath != "" {
		t.Fatal("no artifact path on artifact-missing failure")
	}
}

func TestExecuteUniqueSceneNames(t *testing.T) {
	planner := &fakePlanner{result: ai.Result{Text: "plan"}}
	generator := &fakeGenerator{result: ai.Result{Text: validScene}}
	renderer := &fakeRenderer{err: render.ErrArtifactMissing}

	store := animation.NewMemoryStore()
	p := pipeline.New(planner, generator, renderer, store)

	run1, _ := store.Create("a")
	run2, _ := store.Create("b")

	final1 := p.Execute(context.Background(), run1, nil)
	final2 := p.Execute(context.Background(), run2, nil)

	if final1.Outcome.SceneName == final2.Outcome.SceneName {
		t.Fatalf("scene names collide: %s", final1.Outcome.SceneName)
	}
}
