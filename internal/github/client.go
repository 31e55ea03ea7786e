// Package github reads repositories from the GitHub REST API: metadata,
// file trees, file contents and commit history.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"
)

var (
	// ErrInaccessible means the host answered 404 or 403: the repository is
	// private, deleted, or never existed.
	ErrInaccessible = errors.New("repository is private or does not exist")
	// ErrEmptyRepository means the repository exists but has no tree.
	ErrEmptyRepository = errors.New("repository is empty")
	// ErrNoCommits means the commit history is empty or carries no timestamps.
	ErrNoCommits = errors.New("no commit timestamps available")
)

// Repository is the subset of repository metadata the reviewer needs.
type Repository struct {
	Owner         string
	Name          string
	DefaultBranch string
	Private       bool
}

// TreeEntry is one entry of a recursive tree listing.
type TreeEntry struct {
	Path string
	Type string // "blob", "tree" or "commit"
	Size int
}

// Commit is a commit with its committer timestamp (author timestamp when the
// committer one is missing). Date is zero when neither is present.
type Commit struct {
	SHA  string
	Date time.Time
}

// CommitPage is one page of commit history, newest first.
type CommitPage struct {
	Commits  []Commit
	LastPage int // 0 when this is the only page
}

// Client is the source-control surface the review pipeline depends on.
type Client interface {
	Repository(ctx context.Context, owner, repo string) (*Repository, error)
	Tree(ctx context.Context, owner, repo, ref string) ([]TreeEntry, error)
	FileContent(ctx context.Context, owner, repo, path, ref string) (string, error)
	Commits(ctx context.Context, owner, repo string, page, perPage int) (*CommitPage, error)
}

// RESTClient implements Client over the GitHub REST API.
type RESTClient struct {
	gh *gh.Client
}

// NewRESTClient returns a client authenticated with token (anonymous when
// empty). baseURL overrides the API root, e.g. for GitHub Enterprise.
func NewRESTClient(token, baseURL string) (*RESTClient, error) {
	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}
	c := gh.NewClient(httpClient)
	if baseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse github base url: %w", err)
		}
		c.BaseURL = u
	}
	return &RESTClient{gh: c}, nil
}

func statusCode(err error) int {
	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return respErr.Response.StatusCode
	}
	return 0
}

func (c *RESTClient) Repository(ctx context.Context, owner, repo string) (*Repository, error) {
	r, _, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		switch statusCode(err) {
		case http.StatusNotFound, http.StatusForbidden:
			return nil, fmt.Errorf("%s/%s: %w", owner, repo, ErrInaccessible)
		}
		return nil, fmt.Errorf("get repository %s/%s: %w", owner, repo, err)
	}
	return &Repository{
		Owner:         owner,
		Name:          repo,
		DefaultBranch: r.GetDefaultBranch(),
		Private:       r.GetPrivate(),
	}, nil
}

// Tree lists every entry under ref. GitHub truncates very large recursive
// listings; in that case the tree is walked one level at a time instead.
func (c *RESTClient) Tree(ctx context.Context, owner, repo, ref string) ([]TreeEntry, error) {
	tree, _, err := c.gh.Git.GetTree(ctx, owner, repo, ref, true)
	if err != nil {
		switch statusCode(err) {
		case http.StatusNotFound, http.StatusConflict:
			return nil, fmt.Errorf("%s/%s: %w", owner, repo, ErrEmptyRepository)
		}
		return nil, fmt.Errorf("list tree %s/%s: %w", owner, repo, err)
	}
	if tree.GetTruncated() {
		return c.walkTree(ctx, owner, repo, ref, "")
	}

	entries := make([]TreeEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		entries = append(entries, TreeEntry{Path: e.GetPath(), Type: e.GetType(), Size: e.GetSize()})
	}
	return entries, nil
}

// walkTree lists sha non-recursively and descends into subtrees, yielding
// entries in the same pre-order as a recursive listing.
func (c *RESTClient) walkTree(ctx context.Context, owner, repo, sha, prefix string) ([]TreeEntry, error) {
	tree, _, err := c.gh.Git.GetTree(ctx, owner, repo, sha, false)
	if err != nil {
		return nil, fmt.Errorf("list tree %s/%s %s: %w", owner, repo, strings.TrimSuffix(prefix, "/"), err)
	}
	var entries []TreeEntry
	for _, e := range tree.Entries {
		path := prefix + e.GetPath()
		entries = append(entries, TreeEntry{Path: path, Type: e.GetType(), Size: e.GetSize()})
		if e.GetType() != "tree" {
			continue
		}
		sub, err := c.walkTree(ctx, owner, repo, e.GetSHA(), path+"/")
		if err != nil {
			return nil, err
		}
		entries = append(entries, sub...)
	}
	return entries, nil
}

func (c *RESTClient) FileContent(ctx context.Context, owner, repo, path, ref string) (string, error) {
	fc, _, _, err := c.gh.Repositories.GetContents(ctx, owner, repo, path, &gh.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return "", fmt.Errorf("get contents %s: %w", path, err)
	}
	if fc == nil {
		return "", fmt.Errorf("get contents %s: path is a directory", path)
	}
	content, err := fc.GetContent()
	if err != nil {
		return "", fmt.Errorf("decode contents %s: %w", path, err)
	}
	return content, nil
}

func (c *RESTClient) Commits(ctx context.Context, owner, repo string, page, perPage int) (*CommitPage, error) {
	opts := &gh.CommitsListOptions{ListOptions: gh.ListOptions{Page: page, PerPage: perPage}}
	commits, resp, err := c.gh.Repositories.ListCommits(ctx, owner, repo, opts)
	if err != nil {
		if statusCode(err) == http.StatusConflict {
			return &CommitPage{}, nil
		}
		return nil, fmt.Errorf("list commits %s/%s: %w", owner, repo, err)
	}

	out := &CommitPage{Commits: make([]Commit, 0, len(commits))}
	if resp != nil {
		out.LastPage = resp.LastPage
	}
	for _, rc := range commits {
		date := rc.GetCommit().GetCommitter().GetDate().Time
		if date.IsZero() {
			date = rc.GetCommit().GetAuthor().GetDate().Time
		}
		out.Commits = append(out.Commits, Commit{SHA: rc.GetSHA(), Date: date})
	}
	return out, nil
}
