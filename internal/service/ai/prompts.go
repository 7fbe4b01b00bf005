package ai

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prompt-manim/backend/internal/config"
)

//go:embed prompts/planner_system_prompt.txt prompts/code_gen_system_prompt.txt
var defaultPrompts embed.FS

// promptConfig selects which template files to use inside a prompts
// directory. Both keys are optional; embedded defaults fill the gaps.
type promptConfig struct {
	PlannerPromptFile string `json:"planner_prompt_file"`
	CodeGenPromptFile string `json:"code_gen_prompt_file"`
}

// Templates holds the system instructions for the two model calls.
type Templates struct {
	Planner string
	CodeGen string
}

// LoadTemplates returns the embedded default templates, optionally
// overridden from cfg.Dir. The directory may contain a
// prompt_config.json naming the template files to use.
func LoadTemplates(cfg config.PromptsConfig) (Templates, error) {
	planner, err := defaultPrompts.ReadFile("prompts/planner_system_prompt.txt")
	if err != nil {
		return Templates{}, fmt.Errorf("failed to read embedded planner prompt: %w", err)
	}
	codeGen, err := defaultPrompts.ReadFile("prompts/code_gen_system_prompt.txt")
	if err != nil {
		return Templates{}, fmt.Errorf("failed to read embedded code-gen prompt: %w", err)
	}

	templates := Templates{Planner: string(planner), CodeGen: string(codeGen)}
	if cfg.Dir == "" {
		return templates, nil
	}

	pc, err := loadPromptConfig(cfg.Dir)
	if err != nil {
		return Templates{}, err
	}

	if pc.PlannerPromptFile != "" {
		text, err := readPromptFile(cfg.Dir, pc.PlannerPromptFile)
		if err != nil {
			return Templates{}, fmt.Errorf("planner prompt: %w", err)
		}
		templates.Planner = text
	}
	if pc.CodeGenPromptFile != "" {
		text, err := readPromptFile(cfg.Dir, pc.CodeGenPromptFile)
		if err != nil {
			return Templates{}, fmt.Errorf("code-gen prompt: %w", err)
		}
		templates.CodeGen = text
	}

	return templates, nil
}

func loadPromptConfig(dir string) (promptConfig, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "prompt_config.json"))
	if os.IsNotExist(err) {
		return promptConfig{}, nil
	}
	if err != nil {
		return promptConfig{}, fmt.Errorf("failed to read prompt_config.json: %w", err)
	}

	var pc promptConfig
	if err := json.Unmarshal(raw, &pc); err != nil {
		return promptConfig{}, fmt.Errorf("invalid prompt_config.json: %w", err)
	}
	return pc, nil
}

// readPromptFile reads a template file that must resolve inside dir.
func readPromptFile(dir, name string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	path := filepath.Join(absDir, name)
	rel, err := filepath.Rel(absDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("template file %q escapes prompts directory", name)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read template file: %w", err)
	}
	return string(raw), nil
}

// RenderTemplate replaces known {placeholder} occurrences, leaving
// unknown placeholders untouched so template authors get no surprises.
func RenderTemplate(template string, values map[string]string) string {
	rendered := template
	for key, value := range values {
		rendered = strings.ReplaceAll(rendered, "{"+key+"}", value)
	}
	return rendered
}
