package pipeline

import (
	"fmt"
	"strings"

	"github.com/hackreview/judge/internal/models"
)

const codeReviewSystem = "You are a hackathon judge reviewing a submitted project. " +
	"Compare the submitter's description with the code they actually wrote and grade it honestly. " +
	"Judge only what the code shows; ignore claims the code does not support."

// BuildCodeReviewPrompt assembles the user prompt for the code review stage.
func BuildCodeReviewPrompt(project models.Project, content string) string {
	var b strings.Builder

	b.WriteString("## Project\n")
	fmt.Fprintf(&b, "- Name: %s\n", project.Name)
	fmt.Fprintf(&b, "- Repository: %s\n", project.RepoURL)
	b.WriteString("\n")

	b.WriteString("## Description\n")
	if strings.TrimSpace(project.Description) == "" {
		b.WriteString("(no description provided)\n\n")
	} else {
		b.WriteString(project.Description)
		b.WriteString("\n\n")
	}

	b.WriteString("## Grading\n\n")
	b.WriteString("- `description_accuracy_level`: \"low\", \"medium\" or \"high\" depending on how much of the description the code implements\n")
	b.WriteString("- `technical_complexity`: \"invalid\" when there is no real code, otherwise \"beginner\", \"intermediate\" or \"advanced\"\n")
	b.WriteString("- `tech_stack`: languages, frameworks and hosted services the code uses\n")
	b.WriteString("- Keep each message to two or three sentences\n\n")

	b.WriteString("## Code\n\n")
	b.WriteString(content)
	return b.String()
}

// BuildPrizeSystemPrompt concatenates the guidance of every prize in a batch.
func BuildPrizeSystemPrompt(cats []*models.PrizeCategory) string {
	var b strings.Builder

	b.WriteString("You are a hackathon judge deciding whether a project qualifies for prize categories.\n")
	b.WriteString("Return one verdict per prize slug. Use \"valid\" only when the code clearly meets the prize criteria.\n\n")

	for _, c := range cats {
		fmt.Fprintf(&b, "## %s (slug: %s)\n", c.Name, c.Slug)
		if strings.TrimSpace(c.Prompt) != "" {
			b.WriteString(strings.TrimSpace(c.Prompt))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// BuildPrizePrompt assembles the user prompt for one prize batch.
func BuildPrizePrompt(project models.Project, content string, cats []*models.PrizeCategory) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Project: %s\n", project.Name)
	if project.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", project.Description)
	}
	if len(project.TechStack) > 0 {
		fmt.Fprintf(&b, "Tech stack: %s\n", strings.Join(project.TechStack, ", "))
	}

	slugs := make([]string, len(cats))
	for i, c := range cats {
		slugs[i] = c.Slug
	}
	fmt.Fprintf(&b, "Prizes to judge: %s\n\n", strings.Join(slugs, ", "))

	b.WriteString("## Code\n\n")
	b.WriteString(content)
	return b.String()
}
