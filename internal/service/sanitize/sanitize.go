// Package sanitize cleans model-generated Manim source before it is
// handed to the renderer. This is a heuristic pass, not a parser:
// syntactically broken code still surfaces as a render failure.
package sanitize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoScene indicates the generated text contains no renderable scene
// class, so no subprocess should be spent on it.
var ErrNoScene = errors.New("no renderable scene found in generated code")

var (
	fencePattern = regexp.MustCompile("(?m)^```(?:python)?[ \t]*$")
	scenePattern = regexp.MustCompile(`class\s+\w+\s*\(\s*Scene\s*\)`)
)

// Clean strips markdown code fences the model commonly wraps its output
// in and trims surrounding whitespace.
func Clean(code string) string {
	code = fencePattern.ReplaceAllString(code, "")
	// Inline fences (no newline around them) show up too.
	code = strings.ReplaceAll(code, "```python", "")
	code = strings.ReplaceAll(code, "```", "")
	return strings.TrimSpace(code)
}

// EnsureScene verifies the cleaned code declares a Scene subclass and
// normalizes its class name to sceneName, which is what the renderer
// will be asked to execute.
func EnsureScene(code, sceneName string) (string, error) {
	if !scenePattern.MatchString(code) {
		return "", ErrNoScene
	}

	return scenePattern.ReplaceAllString(code, fmt.Sprintf("class %s(Scene)", sceneName)), nil
}

// Sanitize runs the full pass: fence stripping, scene presence check,
// class-name normalization.
func Sanitize(raw, sceneName string) (string, error) {
	return EnsureScene(Clean(raw), sceneName)
}
