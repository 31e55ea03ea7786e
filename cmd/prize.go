package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gosimple/slug"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hackreview/judge/internal/models"
	"github.com/hackreview/judge/internal/output"
	"github.com/hackreview/judge/internal/store"
)

var (
	prizeSlug     string
	prizePrompt   string
	prizeKeywords []string
)

var prizeCmd = &cobra.Command{
	Use:   "prize",
	Short: "Manage prize categories",
}

var prizeAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or update a prize category",
	Long: `Add or update a prize category. The slug defaults to a slugified name.
Keywords are an optional pre-filter: when set, a project whose code pack
mentions none of them is marked invalid without a model call.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return prizeAddRun(cmd.Context(), args[0])
	},
}

var prizeListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List prize categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		return prizeListRun(cmd.Context())
	},
}

var prizeRemoveCmd = &cobra.Command{
	Use:     "remove <slug>",
	Aliases: []string{"rm"},
	Short:   "Remove a prize category",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return prizeRemoveRun(cmd.Context(), args[0])
	},
}

var prizeImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Upsert prize categories from a YAML file",
	Long: `Upsert prize categories from a YAML file of the form:

  prizes:
    - name: Best Use of AI
      prompt: The project must call a hosted model API in its main flow.
      keywords: [openai, anthropic, gemini]
    - name: Best Hardware Hack
      slug: hardware`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return prizeImportRun(cmd.Context(), args[0])
	},
}

func init() {
	prizeAddCmd.Flags().StringVar(&prizeSlug, "slug", "", "Prize slug (default: slugified name)")
	prizeAddCmd.Flags().StringVar(&prizePrompt, "prompt", "", "Eligibility guidance given to the model")
	prizeAddCmd.Flags().StringSliceVar(&prizeKeywords, "keyword", nil, "Keyword pre-filter (repeatable)")

	prizeCmd.AddCommand(prizeAddCmd)
	prizeCmd.AddCommand(prizeListCmd)
	prizeCmd.AddCommand(prizeRemoveCmd)
	prizeCmd.AddCommand(prizeImportCmd)
	rootCmd.AddCommand(prizeCmd)
}

type prizeFile struct {
	Prizes []prizeEntry `yaml:"prizes"`
}

type prizeEntry struct {
	Slug     string   `yaml:"slug"`
	Name     string   `yaml:"name"`
	Prompt   string   `yaml:"prompt"`
	Keywords []string `yaml:"keywords"`
}

// category turns an entry into a PrizeCategory, deriving the slug from the
// name when none is given.
func (e prizeEntry) category() (*models.PrizeCategory, error) {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return nil, fmt.Errorf("prize name is required")
	}
	s := e.Slug
	if s == "" {
		s = slug.Make(name)
	}
	if !slug.IsSlug(s) {
		return nil, fmt.Errorf("invalid slug %q for prize %q", s, name)
	}
	var keywords []string
	for _, k := range e.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	return &models.PrizeCategory{Slug: s, Name: name, Prompt: e.Prompt, Keywords: keywords}, nil
}

// parsePrizeFile reads and validates a prize YAML document. Duplicate slugs
// are rejected so one file cannot silently overwrite itself.
func parsePrizeFile(data []byte) ([]*models.PrizeCategory, error) {
	var f prizeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse prize file: %w", err)
	}
	seen := make(map[string]bool, len(f.Prizes))
	cats := make([]*models.PrizeCategory, 0, len(f.Prizes))
	for i, e := range f.Prizes {
		c, err := e.category()
		if err != nil {
			return nil, fmt.Errorf("prize %d: %w", i+1, err)
		}
		if seen[c.Slug] {
			return nil, fmt.Errorf("prize %d: duplicate slug %q", i+1, c.Slug)
		}
		seen[c.Slug] = true
		cats = append(cats, c)
	}
	return cats, nil
}

func prizeAddRun(ctx context.Context, name string) error {
	c, err := prizeEntry{Slug: prizeSlug, Name: name, Prompt: prizePrompt, Keywords: prizeKeywords}.category()
	if err != nil {
		return err
	}

	s, err := getStore()
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would save prize: %s (%s)", c.Name, c.Slug)
		return nil
	}
	if err := s.UpsertPrizeCategory(ctx, c); err != nil {
		return fmt.Errorf("save prize: %w", err)
	}
	ui.Success("Saved prize: %s (%s)", output.Cyan(c.Name), c.Slug)
	return nil
}

func prizeListRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	cats, err := s.ListPrizeCategories(ctx)
	if err != nil {
		return err
	}
	if len(cats) == 0 {
		ui.Info("No prize categories. Use 'judge prize add <name>' or 'judge prize import <file>'.")
		return nil
	}

	table := ui.Table([]string{"Slug", "Name", "Keywords"})
	for _, c := range cats {
		table.Append([]string{c.Slug, output.Cyan(c.Name), strings.Join(c.Keywords, ", ")})
	}
	table.Render()
	return nil
}

func prizeRemoveRun(ctx context.Context, slugArg string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would remove prize: %s", slugArg)
		return nil
	}
	if err := s.DeletePrizeCategory(ctx, slugArg); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("prize not found: %s", slugArg)
		}
		return fmt.Errorf("remove prize: %w", err)
	}
	ui.Success("Removed prize: %s", slugArg)
	return nil
}

func prizeImportRun(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read prize file: %w", err)
	}
	cats, err := parsePrizeFile(data)
	if err != nil {
		return err
	}

	s, err := getStore()
	if err != nil {
		return err
	}

	for _, c := range cats {
		if dryRun {
			ui.DryRunMsg("Would save prize: %s (%s)", c.Name, c.Slug)
			continue
		}
		if err := s.UpsertPrizeCategory(ctx, c); err != nil {
			return fmt.Errorf("save prize %s: %w", c.Slug, err)
		}
		ui.VerboseLog("Saved %s", c.Slug)
	}
	if !dryRun {
		ui.Success("Imported %d prize categor(ies) from %s", len(cats), path)
	}
	return nil
}
