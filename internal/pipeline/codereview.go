package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hackreview/judge/internal/llm"
	"github.com/hackreview/judge/internal/models"
)

// CodeReview is the structured output of the code review stage.
type CodeReview struct {
	DescriptionAccuracyLevel   string   `json:"description_accuracy_level" validate:"required,oneof=low medium high" jsonschema:"enum=low,enum=medium,enum=high,description=How well the description matches the code"`
	DescriptionAccuracyMessage string   `json:"description_accuracy_message" validate:"required" jsonschema:"description=Short justification for the accuracy level"`
	TechnicalComplexity        string   `json:"technical_complexity" validate:"required,oneof=invalid beginner intermediate advanced" jsonschema:"enum=invalid,enum=beginner,enum=intermediate,enum=advanced"`
	TechnicalComplexityMessage string   `json:"technical_complexity_message" validate:"required" jsonschema:"description=Short justification for the complexity rating"`
	TechStack                  []string `json:"tech_stack" validate:"required" jsonschema:"description=Languages frameworks and services the code uses"`
}

var codeReviewSchema = mustSchema(llm.SchemaFor[CodeReview]("code_review",
	"Assessment of a hackathon project's description accuracy, technical complexity and tech stack."))

func mustSchema(s llm.Schema, err error) llm.Schema {
	if err != nil {
		panic(err)
	}
	return s
}

// reviewCode asks the model to grade the project and persists all five fields.
func (p *Pipeline) reviewCode(ctx context.Context, st RunState) (RunState, error) {
	log := st.logger("code_review")

	if !st.HasContent() {
		return p.fail(ctx, st, models.ProjectStatusGitHubInaccessible, msgFetchFailed)
	}

	var review CodeReview
	err := p.generator.Generate(ctx, llm.Request{
		System: codeReviewSystem,
		Prompt: BuildCodeReviewPrompt(st.Project, st.Repo.Content),
		Schema: codeReviewSchema,
	}, &review)
	if err != nil {
		log.Warn("code review generation failed", zap.Error(err))
		return p.fail(ctx, st, models.ProjectStatusErrored, fmt.Sprintf("Code review failed: %v", err))
	}

	stack := review.TechStack
	if stack == nil {
		stack = []string{}
	}
	st, err = p.update(ctx, st, models.ProjectUpdate{
		DescriptionAccuracyLevel:   &review.DescriptionAccuracyLevel,
		DescriptionAccuracyMessage: &review.DescriptionAccuracyMessage,
		TechnicalComplexity:        &review.TechnicalComplexity,
		TechnicalComplexityMessage: &review.TechnicalComplexityMessage,
		TechStack:                  &stack,
	})
	if err != nil {
		return st, err
	}
	log.Info("code review saved",
		zap.String("accuracy", review.DescriptionAccuracyLevel),
		zap.String("complexity", review.TechnicalComplexity),
		zap.Strings("tech_stack", stack))
	return st, nil
}
