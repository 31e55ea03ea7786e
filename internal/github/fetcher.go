package github

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FetchOptions bounds what the Fetcher downloads.
type FetchOptions struct {
	Concurrency  int      // simultaneous content requests
	MaxFileBytes int      // larger files are skipped
	Exclude      []string // extra exclusion patterns on top of DefaultExcludes
}

// DefaultFetchOptions returns the stock limits: 4 workers, 200 000 bytes per file.
func DefaultFetchOptions() FetchOptions {
	return FetchOptions{Concurrency: 4, MaxFileBytes: 200_000}
}

// CodePack is the concatenated text of a repository's eligible files.
type CodePack struct {
	Text  string
	Files int
}

// Fetcher builds code packs from a repository tree.
type Fetcher struct {
	client   Client
	opts     FetchOptions
	excluder *Excluder
	logger   *zap.Logger
}

// NewFetcher creates a Fetcher. Zero option values fall back to the defaults.
func NewFetcher(client Client, opts FetchOptions, logger *zap.Logger) *Fetcher {
	def := DefaultFetchOptions()
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = def.MaxFileBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{client: client, opts: opts, excluder: NewExcluder(opts.Exclude), logger: logger}
}

// Eligible filters a tree down to the blobs that go into a code pack,
// preserving tree order.
func (f *Fetcher) Eligible(entries []TreeEntry) []TreeEntry {
	var out []TreeEntry
	for _, e := range entries {
		if e.Type != "blob" {
			continue
		}
		if f.excluder.Excluded(e.Path) {
			continue
		}
		if e.Size > f.opts.MaxFileBytes {
			continue
		}
		out = append(out, e)
	}
	return out
}

// CodePack lists the tree at ref and concatenates every eligible file as
// "## File: <path>\n<content>\n\n" in tree order. An empty repository yields
// an empty pack. A file whose content cannot be fetched contributes an empty
// body; only tree listing failures and cancellation are returned as errors.
func (f *Fetcher) CodePack(ctx context.Context, owner, repo, ref string) (*CodePack, error) {
	entries, err := f.client.Tree(ctx, owner, repo, ref)
	if errors.Is(err, ErrEmptyRepository) {
		return &CodePack{}, nil
	}
	if err != nil {
		return nil, err
	}

	files := f.Eligible(entries)
	if len(files) == 0 {
		return &CodePack{}, nil
	}

	contents := make([]string, len(files))
	var cursor atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for range min(f.opts.Concurrency, len(files)) {
		g.Go(func() error {
			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				i := int(cursor.Add(1) - 1)
				if i >= len(files) {
					return nil
				}
				text, err := f.client.FileContent(gctx, owner, repo, files[i].Path, ref)
				if err != nil {
					f.logger.Debug("file fetch failed", zap.String("path", files[i].Path), zap.Error(err))
					continue
				}
				contents[i] = text
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch %s/%s contents: %w", owner, repo, err)
	}

	var b strings.Builder
	for i, file := range files {
		b.WriteString("## File: ")
		b.WriteString(file.Path)
		b.WriteString("\n")
		b.WriteString(contents[i])
		b.WriteString("\n\n")
	}
	return &CodePack{Text: b.String(), Files: len(files)}, nil
}
