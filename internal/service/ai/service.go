package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/prompt-manim/backend/internal/config"
)

// Result carries one model response plus its token accounting.
type Result struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Service encapsulates the two model calls of a run: planning and code
// generation. Both go through the same compiled chain; only the system
// instruction and user content differ.
type Service struct {
	chatModel model.ChatModel
	templates Templates
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService creates a new AI service instance.
func NewService(ctx context.Context, cfg config.AIConfig, templates Templates) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	return newServiceWithModel(ctx, chatModel, templates)
}

func newServiceWithModel(ctx context.Context, chatModel model.ChatModel, templates Templates) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		templates: templates,
		chain:     runnable,
	}, nil
}

// GeneratePlan asks the model for a structured animation plan.
func (s *Service) GeneratePlan(ctx context.Context, userPrompt string) (Result, error) {
	system := RenderTemplate(s.templates.Planner, map[string]string{
		"user_prompt": userPrompt,
	})

	result, err := s.invoke(ctx, system, userPrompt)
	if err != nil {
		return Result{}, fmt.Errorf("plan generation failed: %w", err)
	}
	if result.Text == "" {
		return Result{}, fmt.Errorf("plan generation failed: model returned empty response")
	}

	log.Printf("[ai] plan generated, length=%d tokens=%d/%d", len(result.Text), result.InputTokens, result.OutputTokens)
	return result, nil
}

// GenerateCode asks the model for Manim scene source implementing the plan.
// sceneName is the class name the generated scene must declare.
func (s *Service) GenerateCode(ctx context.Context, plan, userPrompt, sceneName string) (Result, error) {
	system := RenderTemplate(s.templates.CodeGen, map[string]string{
		"class_name":     sceneName,
		"animation_plan": plan,
		"user_prompt":    userPrompt,
	})

	query := fmt.Sprintf("Animation plan:\n%s\n\nOriginal request: %s", plan, userPrompt)

	result, err := s.invoke(ctx, system, query)
	if err != nil {
		return Result{}, fmt.Errorf("code generation failed: %w", err)
	}
	if result.Text == "" {
		return Result{}, fmt.Errorf("code generation failed: model returned empty response")
	}

	log.Printf("[ai] code generated for scene=%s, length=%d tokens=%d/%d", sceneName, len(result.Text), result.InputTokens, result.OutputTokens)
	return result, nil
}

func (s *Service) invoke(ctx context.Context, system, query string) (Result, error) {
	response, err := s.chain.Invoke(ctx, map[string]any{
		"system": system,
		"query":  query,
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to run AI chain: %w", err)
	}
	if response == nil {
		return Result{}, fmt.Errorf("AI chain returned nil message")
	}

	result := Result{Text: response.Content}
	if response.ResponseMeta != nil && response.ResponseMeta.Usage != nil {
		result.InputTokens = response.ResponseMeta.Usage.PromptTokens
		result.OutputTokens = response.ResponseMeta.Usage.CompletionTokens
	}
	return result, nil
}
