package sanitize_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/prompt-manim/backend/internal/service/sanitize"
)

func TestCleanStripsFences(t *testing.T) {
	raw := "```python\nfrom manim import *\n\nclass MyScene(Scene):\n    pass\n```"

	got := sanitize.Clean(raw)

	if strings.Contains(got, "```") {
		t.Fatalf("fences not stripped: %q", got)
	}
	if !strings.HasPrefix(got, "from manim import *") {
		t.Fatalf("unexpected prefix: %q", got)
	}
}

func TestCleanPlainCodeUnchanged(t *testing.T) {
	raw := "from manim import *\n\nclass MyScene(Scene):\n    pass"
	if got := sanitize.Clean(raw); got != raw {
		t.Fatalf("plain code modified: %q", got)
	}
}

func TestSanitizeNormalizesClassName(t *testing.T) {
	raw := "```python\nclass WhateverTheModelPicked(Scene):\n    def construct(self):\n        pass\n```"

	got, err := sanitize.Sanitize(raw, "PromptScene_20240101_120000")
	if err != nil {
		t.Fatalf("Sanitize err: %v", err)
	}

	if !strings.Contains(got, "class PromptScene_20240101_120000(Scene)") {
		t.Fatalf("class name not normalized: %q", got)
	}
	if strings.Contains(got, "WhateverTheModelPicked") {
		t.Fatalf("old class name survived: %q", got)
	}
}

func TestSanitizeSpacedDeclaration(t *testing.T) {
	raw := "class  Foo ( Scene ):\n    pass"

	got, err := sanitize.Sanitize(raw, "Target")
	if err != nil {
		t.Fatalf("Sanitize err: %v", err)
	}
	if !strings.Contains(got, "class Target(Scene)") {
		t.Fatalf("spaced declaration not normalized: %q", got)
	}
}

func TestSanitizeNoScene(t *testing.T) {
	raw := "Sorry, I cannot generate that animation."

	if _, err := sanitize.Sanitize(raw, "Target"); !errors.Is(err, sanitize.ErrNoScene) {
		t.Fatalf("expected ErrNoScene, got %v", err)
	}
}

func TestSanitizeNonSceneClassRejected(t *testing.T) {
	raw := "class Helper(object):\n    pass"

	if _, err := sanitize.Sanitize(raw, "Target"); !errors.Is(err, sanitize.ErrNoScene) {
		t.Fatalf("expected ErrNoScene, got %v", err)
	}
}
