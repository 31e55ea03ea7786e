package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hackreview/judge/internal/keyword"
	"github.com/hackreview/judge/internal/llm"
	"github.com/hackreview/judge/internal/models"
)

// PrizeVerdict is the model's judgement for one prize.
type PrizeVerdict struct {
	Status  string `json:"status" validate:"required,oneof=valid invalid" jsonschema:"enum=valid,enum=invalid"`
	Message string `json:"message" validate:"required" jsonschema:"description=Why the project does or does not qualify"`
}

// batchFailure reports that every eligible slug in a prize batch was marked
// errored. The run continues with the next batch.
type batchFailure struct {
	slugs []string
	err   error
}

func (e *batchFailure) Error() string {
	return fmt.Sprintf("prize batch %s: %v", strings.Join(e.slugs, ","), e.err)
}

func (e *batchFailure) Unwrap() error { return e.err }

// reviewPrizes judges one batch of prize slugs. Slugs without configuration
// or failing the keyword pre-filter are marked invalid without a model call;
// the rest share a single structured generation.
func (p *Pipeline) reviewPrizes(ctx context.Context, st RunState, slugs []string) (RunState, error) {
	log := st.logger("prize_review").With(zap.Strings("slugs", slugs))

	st, err := p.mergePrizes(ctx, st, resultsFor(slugs, models.PrizeResultProcessing, ""))
	if err != nil {
		return st, err
	}

	cats, loadErr := p.store.GetPrizeCategories(ctx, slugs)
	if loadErr != nil {
		if ctx.Err() != nil {
			return st, ctx.Err()
		}
		loadErr = fmt.Errorf("load prize categories: %w", loadErr)
		log.Warn("prize configuration unavailable", zap.Error(loadErr))
		st, err = p.mergePrizes(ctx, st, resultsFor(slugs, models.PrizeResultErrored, loadErr.Error()))
		if err != nil {
			return st, err
		}
		return st, &batchFailure{slugs: slugs, err: loadErr}
	}
	bySlug := make(map[string]*models.PrizeCategory, len(cats))
	for _, c := range cats {
		bySlug[c.Slug] = c
	}

	content := ""
	if st.Repo != nil {
		content = st.Repo.Content
	}

	skipped := make(map[string]models.PrizeReviewResult)
	var eligible []*models.PrizeCategory
	for _, slug := range slugs {
		cat, ok := bySlug[slug]
		switch {
		case !ok:
			skipped[slug] = models.PrizeReviewResult{Status: models.PrizeResultInvalid, Message: msgPrizeNotFound}
		case keyword.Configured(cat.Keywords) && !keyword.AnyMatch(content, cat.Keywords):
			skipped[slug] = models.PrizeReviewResult{
				Status:  models.PrizeResultInvalid,
				Message: "Keyword check failed for " + cat.Name,
			}
		default:
			eligible = append(eligible, cat)
		}
	}
	if len(skipped) > 0 {
		log.Info("prizes rejected before review", zap.Int("count", len(skipped)))
		if st, err = p.mergePrizes(ctx, st, skipped); err != nil {
			return st, err
		}
	}
	if len(eligible) == 0 {
		return st, nil
	}

	keys := make([]string, len(eligible))
	for i, c := range eligible {
		keys[i] = c.Slug
	}

	verdicts, genErr := p.judgePrizes(ctx, st.Project, content, eligible, keys)
	if genErr != nil {
		if ctx.Err() != nil {
			return st, ctx.Err()
		}
		log.Warn("prize review failed", zap.Strings("eligible", keys), zap.Error(genErr))
		st, err = p.mergePrizes(ctx, st, resultsFor(keys, models.PrizeResultErrored, genErr.Error()))
		if err != nil {
			return st, err
		}
		return st, &batchFailure{slugs: keys, err: genErr}
	}

	results := make(map[string]models.PrizeReviewResult, len(keys))
	for _, slug := range keys {
		v := verdicts[slug]
		results[slug] = models.PrizeReviewResult{Status: models.PrizeResultStatus(v.Status), Message: v.Message}
	}
	if st, err = p.mergePrizes(ctx, st, results); err != nil {
		return st, err
	}
	log.Info("prize review saved", zap.Strings("eligible", keys))
	return st, nil
}

// judgePrizes runs the batched generation and checks that every slug got a verdict.
func (p *Pipeline) judgePrizes(ctx context.Context, project models.Project, content string, cats []*models.PrizeCategory, keys []string) (map[string]PrizeVerdict, error) {
	schema, err := llm.KeyedSchema[PrizeVerdict]("prize_review",
		"One eligibility verdict per prize category, keyed by prize slug.", keys)
	if err != nil {
		return nil, err
	}

	var verdicts map[string]PrizeVerdict
	err = p.generator.Generate(ctx, llm.Request{
		System: BuildPrizeSystemPrompt(cats),
		Prompt: BuildPrizePrompt(project, content, cats),
		Schema: schema,
	}, &verdicts)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		if _, ok := verdicts[k]; !ok {
			return nil, fmt.Errorf("%s: %s", msgPrizeMissingResp, k)
		}
	}
	return verdicts, nil
}

func resultsFor(slugs []string, status models.PrizeResultStatus, msg string) map[string]models.PrizeReviewResult {
	out := make(map[string]models.PrizeReviewResult, len(slugs))
	for _, s := range slugs {
		out[s] = models.PrizeReviewResult{Status: status, Message: msg}
	}
	return out
}
