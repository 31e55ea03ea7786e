package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hackreview/judge/internal/models"
	"github.com/hackreview/judge/internal/output"
	"github.com/hackreview/judge/internal/store"
)

var (
	eventStarts string
	eventEnds   string
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Manage hackathon events",
	Long:  "Events define the submission window commits are checked against.",
}

var eventAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add an event",
	Long: `Add an event. --starts and --ends take RFC 3339 timestamps, e.g.
2026-03-01T09:00:00Z. Both must be given for the window to apply.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return eventAddRun(cmd.Context(), args[0])
	},
}

var eventListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List events",
	RunE: func(cmd *cobra.Command, args []string) error {
		return eventListRun(cmd.Context())
	},
}

func init() {
	eventAddCmd.Flags().StringVar(&eventStarts, "starts", "", "Window start (RFC 3339)")
	eventAddCmd.Flags().StringVar(&eventEnds, "ends", "", "Window end (RFC 3339)")

	eventCmd.AddCommand(eventAddCmd)
	eventCmd.AddCommand(eventListCmd)
	rootCmd.AddCommand(eventCmd)
}

func parseWindow(starts, ends string) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if starts != "" {
		t, err := time.Parse(time.RFC3339, starts)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid --starts: %w", err)
		}
		from = &t
	}
	if ends != "" {
		t, err := time.Parse(time.RFC3339, ends)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid --ends: %w", err)
		}
		to = &t
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, fmt.Errorf("--ends is before --starts")
	}
	return from, to, nil
}

func eventAddRun(ctx context.Context, name string) error {
	from, to, err := parseWindow(eventStarts, eventEnds)
	if err != nil {
		return err
	}
	if (from == nil) != (to == nil) {
		ui.Warning("Only one window bound given; commit timestamps will not be checked")
	}

	s, err := getStore()
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would add event: %s", name)
		return nil
	}

	ev := &models.Event{Name: name, StartsAt: from, EndsAt: to}
	if err := s.CreateEvent(ctx, ev); err != nil {
		return fmt.Errorf("add event: %w", err)
	}
	ui.Success("Added event: %s (%s)", output.Cyan(name), ev.ID)
	return nil
}

func eventListRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	events, err := s.ListEvents(ctx)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		ui.Info("No events. Use 'judge event add <name>' to create one.")
		return nil
	}

	table := ui.Table([]string{"ID", "Name", "Starts", "Ends"})
	for _, ev := range events {
		table.Append([]string{ev.ID, output.Cyan(ev.Name), formatTime(ev.StartsAt), formatTime(ev.EndsAt)})
	}
	table.Render()
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

// resolveEvent finds an event by ID, then by name.
func resolveEvent(ctx context.Context, s store.Store, idOrName string) (*models.Event, error) {
	ev, err := s.GetEvent(ctx, idOrName)
	if err == nil {
		return ev, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	ev, err = s.GetEventByName(ctx, idOrName)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("event not found: %s", idOrName)
	}
	return ev, err
}
