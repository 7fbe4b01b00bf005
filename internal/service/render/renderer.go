// Package render invokes the external Manim CLI for a single run and
// locates the video artifact it produced.
package render

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prompt-manim/backend/internal/config"
)

var (
	// ErrTimeout indicates the renderer exceeded its wall-clock budget
	// and was terminated. Nothing it may have written is trusted.
	ErrTimeout = errors.New("rendering timed out")

	// ErrArtifactMissing indicates the renderer exited zero but no
	// video file was found in the run's media directory.
	ErrArtifactMissing = errors.New("video artifact not found after successful render")
)

// CommandError carries the renderer's combined output when it exits
// non-zero, for user-visible diagnostics.
type CommandError struct {
	Output string
	Err    error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("rendering failed: %v", e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Result is a successful render: the artifact on disk plus the
// renderer's combined output for the log tab.
type Result struct {
	ArtifactPath string
	Log          string
}

const sceneFileName = "scene.py"

// Renderer writes generated source to a per-run directory and runs the
// renderer CLI against it. Every run gets its own media directory, so
// concurrent runs can never discover each other's artifacts.
type Renderer struct {
	cfg  config.RenderConfig
	exec Executor
}

// NewRenderer builds a Renderer using the real subprocess executor.
func NewRenderer(cfg config.RenderConfig) *Renderer {
	return NewRendererWithExecutor(cfg, CommandExecutor{})
}

// NewRendererWithExecutor builds a Renderer with a custom executor.
func NewRendererWithExecutor(cfg config.RenderConfig, exec Executor) *Renderer {
	return &Renderer{cfg: cfg, exec: exec}
}

// RunDir returns the isolated working directory for a run.
func (r *Renderer) RunDir(runID string) string {
	return filepath.Join(r.cfg.WorkDir, runID)
}

// Render writes code to the run's scene file, invokes the renderer with
// a bounded timeout, and returns the discovered artifact.
func (r *Renderer) Render(ctx context.Context, code, sceneName, runID string) (Result, error) {
	runDir := r.RunDir(runID)
	mediaDir := filepath.Join(runDir, "media")
	if err := os.MkdirAll(mediaDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("failed to create run directory: %w", err)
	}

	scenePath := filepath.Join(runDir, sceneFileName)
	if err := os.WriteFile(scenePath, []byte(code), 0o644); err != nil {
		return Result{}, fmt.Errorf("failed to write scene file: %w", err)
	}

	args := []string{r.cfg.QualityFlag, "--media_dir", mediaDir, sceneFileName, sceneName}

	timeoutCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	start := time.Now()
	output, err := r.exec.Run(timeoutCtx, runDir, r.cfg.Command, args...)
	outputText := string(output)

	if timeoutCtx.Err() == context.DeadlineExceeded {
		log.Printf("[render] run=%s timed out after %s", runID, r.cfg.Timeout)
		return Result{}, fmt.Errorf("%w (budget %s)", ErrTimeout, r.cfg.Timeout)
	}
	if err != nil {
		log.Printf("[render] run=%s failed after %s: %v", runID, time.Since(start).Round(time.Millisecond), err)
		return Result{}, &CommandError{Output: outputText, Err: err}
	}

	artifact, err := findArtifact(mediaDir)
	if err != nil {
		return Result{}, err
	}

	log.Printf("[render] run=%s completed in %s, artifact=%s", runID, time.Since(start).Round(time.Millisecond), artifact)
	return Result{ArtifactPath: artifact, Log: outputText}, nil
}

// findArtifact returns the newest .mp4 under the run's own media
// directory. Manim decides the exact nesting (quality/scene module
// subdirectories), so the scan walks the whole tree but skips the
// partial movie caches.
func findArtifact(mediaDir string) (string, error) {
	var newest string
	var newestMod time.Time

	err := filepath.WalkDir(mediaDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "partial_movie_files" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".mp4") {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = path
			newestMod = info.ModTime()
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to scan media directory: %w", err)
	}

	if newest == "" {
		return "", ErrArtifactMissing
	}
	return newest, nil
}
