package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hackreview/judge/internal/github"
	"github.com/hackreview/judge/internal/models"
	"github.com/hackreview/judge/internal/output"
	"github.com/hackreview/judge/internal/store"
)

var (
	projectRepo        string
	projectEvent       string
	projectDescription string
	projectPrizes      []string
	projectStatus      string
	projectLimit       int
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage submitted projects",
	Long:  "Add, remove, list, and show hackathon submissions and their verdicts.",
}

var projectAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Submit a project for review",
	Long: `Submit a project. It is stored as pending and picked up by the worker
in 'judge serve' or by 'judge review --pending'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectAddRun(cmd.Context(), args[0])
	},
}

var projectRemoveCmd = &cobra.Command{
	Use:     "remove <id>",
	Aliases: []string{"rm"},
	Short:   "Remove a project",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectRemoveRun(cmd.Context(), args[0])
	},
}

var projectListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectListRun(cmd.Context())
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a project and its verdict",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectShowRun(cmd.Context(), args[0])
	},
}

var projectQueueCmd = &cobra.Command{
	Use:   "queue <id>",
	Short: "Queue a project for re-review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectQueueRun(cmd.Context(), args[0])
	},
}

func init() {
	projectAddCmd.Flags().StringVar(&projectRepo, "repo", "", "GitHub repository URL (required)")
	projectAddCmd.Flags().StringVar(&projectEvent, "event", "", "Event ID or name")
	projectAddCmd.Flags().StringVar(&projectDescription, "description", "", "Project description as submitted")
	projectAddCmd.Flags().StringSliceVar(&projectPrizes, "prize", nil, "Prize slug to opt into (repeatable)")
	_ = projectAddCmd.MarkFlagRequired("repo")

	projectListCmd.Flags().StringVar(&projectEvent, "event", "", "Filter by event ID or name")
	projectListCmd.Flags().StringVar(&projectStatus, "status", "", "Filter by status")
	projectListCmd.Flags().IntVar(&projectLimit, "limit", 0, "Maximum number of projects")

	projectCmd.AddCommand(projectAddCmd)
	projectCmd.AddCommand(projectRemoveCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectShowCmd)
	projectCmd.AddCommand(projectQueueCmd)
	rootCmd.AddCommand(projectCmd)
}

func projectAddRun(ctx context.Context, name string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	// A bad URL is accepted; the review records it as github_inaccessible.
	if _, _, err := github.ParseRepoURL(projectRepo); err != nil {
		ui.Warning("%v", err)
	}

	p := &models.Project{
		Name:        name,
		RepoURL:     projectRepo,
		Description: projectDescription,
		Status:      models.ProjectStatusPending,
		PrizeSlugs:  projectPrizes,
	}
	if projectEvent != "" {
		ev, err := resolveEvent(ctx, s, projectEvent)
		if err != nil {
			return err
		}
		p.EventID = ev.ID
	}

	if dryRun {
		ui.DryRunMsg("Would add project: %s (%s)", name, projectRepo)
		return nil
	}

	if err := s.CreateProject(ctx, p); err != nil {
		return fmt.Errorf("add project: %w", err)
	}

	ui.Success("Added project: %s (%s)", output.Cyan(name), p.ID)
	if len(p.PrizeSlugs) > 0 {
		ui.VerboseLog("Prizes: %s", strings.Join(p.PrizeSlugs, ", "))
	}
	return nil
}

func projectRemoveRun(ctx context.Context, id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	p, err := resolveProject(ctx, s, id)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would remove project: %s", p.Name)
		return nil
	}

	if err := s.DeleteProject(ctx, p.ID); err != nil {
		return fmt.Errorf("remove project: %w", err)
	}

	ui.Success("Removed project: %s", output.Cyan(p.Name))
	return nil
}

func projectListRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	filter := store.ProjectListFilter{Status: models.ProjectStatus(projectStatus), Limit: projectLimit}
	if projectEvent != "" {
		ev, err := resolveEvent(ctx, s, projectEvent)
		if err != nil {
			return err
		}
		filter.EventID = ev.ID
	}

	projects, err := s.ListProjects(ctx, filter)
	if err != nil {
		return err
	}

	if len(projects) == 0 {
		ui.Info("No projects. Use 'judge project add <name> --repo <url>' to submit one.")
		return nil
	}

	table := ui.Table([]string{"ID", "Name", "Status", "Complexity", "Prizes"})
	for _, p := range projects {
		table.Append([]string{
			p.ID,
			output.Cyan(p.Name),
			output.StatusColor(string(p.Status)),
			output.LevelColor(p.TechnicalComplexity),
			prizeSummary(p.PrizeResults),
		})
	}
	table.Render()
	return nil
}

// prizeSummary renders "2/3 valid" style counts.
func prizeSummary(results map[string]models.PrizeReviewResult) string {
	if len(results) == 0 {
		return "-"
	}
	valid := 0
	for _, r := range results {
		if r.Status == models.PrizeResultValid {
			valid++
		}
	}
	return fmt.Sprintf("%d/%d valid", valid, len(results))
}

func projectShowRun(ctx context.Context, id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	p, err := resolveProject(ctx, s, id)
	if err != nil {
		return err
	}

	// Header
	fmt.Fprintf(ui.Out, "%s\n", output.Cyan(p.Name))
	fmt.Fprintf(ui.Out, "  ID:         %s\n", p.ID)
	fmt.Fprintf(ui.Out, "  Repo:       %s\n", p.RepoURL)
	if p.Event != nil {
		fmt.Fprintf(ui.Out, "  Event:      %s (%s .. %s)\n", p.Event.Name, formatTime(p.Event.StartsAt), formatTime(p.Event.EndsAt))
	}
	if p.Description != "" {
		fmt.Fprintf(ui.Out, "  Desc:       %s\n", p.Description)
	}
	fmt.Fprintf(ui.Out, "  Status:     %s\n", output.StatusColor(string(p.Status)))
	if p.StatusMessage != nil {
		fmt.Fprintf(ui.Out, "  Message:    %s\n", *p.StatusMessage)
	}
	fmt.Fprintf(ui.Out, "  Updated:    %s\n", timeAgo(p.UpdatedAt))
	fmt.Fprintln(ui.Out)

	// Code review
	if p.TechnicalComplexity != "" || p.DescriptionAccuracyLevel != "" {
		fmt.Fprintf(ui.Out, "  Accuracy:   %s  %s\n", output.LevelColor(p.DescriptionAccuracyLevel), p.DescriptionAccuracyMessage)
		fmt.Fprintf(ui.Out, "  Complexity: %s  %s\n", output.LevelColor(p.TechnicalComplexity), p.TechnicalComplexityMessage)
		if len(p.TechStack) > 0 {
			fmt.Fprintf(ui.Out, "  Stack:      %s\n", strings.Join(p.TechStack, ", "))
		}
		fmt.Fprintln(ui.Out)
	}

	// Prizes
	if len(p.PrizeResults) > 0 {
		slugs := make([]string, 0, len(p.PrizeResults))
		for slug := range p.PrizeResults {
			slugs = append(slugs, slug)
		}
		sort.Strings(slugs)

		table := ui.Table([]string{"Prize", "Result", "Message"})
		for _, slug := range slugs {
			r := p.PrizeResults[slug]
			table.Append([]string{slug, output.StatusColor(string(r.Status)), r.Message})
		}
		table.Render()
	}
	return nil
}

func projectQueueRun(ctx context.Context, id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	p, err := resolveProject(ctx, s, id)
	if err != nil {
		return err
	}
	if p.Status.IsProcessing() {
		ui.Warning("Project %s is %s; it will be reviewed again from the start", p.Name, p.Status)
	}

	if dryRun {
		ui.DryRunMsg("Would queue project: %s", p.Name)
		return nil
	}

	status := models.ProjectStatusPending
	empty := ""
	if err := s.UpdateProject(ctx, p.ID, models.ProjectUpdate{Status: &status, StatusMessage: &empty}); err != nil {
		return fmt.Errorf("queue project: %w", err)
	}
	ui.Success("Queued project: %s", output.Cyan(p.Name))
	return nil
}

func resolveProject(ctx context.Context, s store.Store, id string) (*models.Project, error) {
	p, err := s.GetProject(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("project not found: %s", id)
	}
	return p, err
}

// timeAgo returns a human-readable relative time string.
func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		m := int(d.Minutes())
		if m == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", m)
	case d < 24*time.Hour:
		h := int(d.Hours())
		if h == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", h)
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}
