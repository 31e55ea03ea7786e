package github

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidURL is returned when a repository URL is not a github.com URL
// with an owner and repository name.
var ErrInvalidURL = errors.New("invalid GitHub repository URL")

// ParseRepoURL parses a GitHub repository URL and returns owner/repo.
// It accepts https and http URLs (with or without a .git suffix, with or
// without trailing path such as /tree/main), scheme-less "github.com/owner/repo"
// and SSH remotes "git@github.com:owner/repo.git". It never touches the network.
func ParseRepoURL(raw string) (owner, repo string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", fmt.Errorf("%w: empty", ErrInvalidURL)
	}

	// Handle SSH: git@github.com:owner/repo.git
	if strings.HasPrefix(raw, "git@") {
		host, path, ok := strings.Cut(strings.TrimPrefix(raw, "git@"), ":")
		if !ok || !isGitHubHost(host) {
			return "", "", fmt.Errorf("%w: %s", ErrInvalidURL, raw)
		}
		return splitOwnerRepo(raw, path)
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if !isGitHubHost(u.Hostname()) {
		return "", "", fmt.Errorf("%w: host %q is not github.com", ErrInvalidURL, u.Hostname())
	}
	return splitOwnerRepo(raw, u.Path)
}

func isGitHubHost(host string) bool {
	host = strings.ToLower(host)
	return host == "github.com" || host == "www.github.com"
}

func splitOwnerRepo(raw, path string) (string, string, error) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 2 {
		return "", "", fmt.Errorf("%w: cannot parse owner/repo from %s", ErrInvalidURL, raw)
	}
	owner := segments[0]
	repo := strings.TrimSuffix(segments[1], ".git")
	if owner == "" || repo == "" {
		return "", "", fmt.Errorf("%w: cannot parse owner/repo from %s", ErrInvalidURL, raw)
	}
	return owner, repo, nil
}
