package github

import "strings"

// DefaultExcludes are path fragments that never belong in a code pack.
// Matching is a case-insensitive substring test against the full path.
var DefaultExcludes = []string{
	// dependency and build output directories
	"node_modules/", "vendor/", "bower_components/", ".git/", "dist/", "build/",
	".next/", ".nuxt/", "__pycache__/", ".venv/", "venv/", "target/",
	"coverage/", ".idea/", ".vscode/", ".gradle/", "pods/",

	// lockfiles and OS junk
	"package-lock.json", "yarn.lock", "pnpm-lock.yaml", "bun.lockb", "go.sum",
	"cargo.lock", "poetry.lock", "pipfile.lock", "gemfile.lock", "composer.lock",
	".ds_store", "thumbs.db",

	// binaries, media and archives
	".png", ".jpg", ".jpeg", ".gif", ".ico", ".svg", ".webp", ".bmp", ".tiff",
	".pdf", ".zip", ".tar", ".gz", ".tgz", ".rar", ".7z", ".jar", ".war",
	".exe", ".dll", ".dylib", ".wasm", ".pyc", ".class",
	".woff", ".woff2", ".ttf", ".otf", ".eot",
	".mp3", ".mp4", ".mov", ".wav", ".avi", ".webm",
	".min.js", ".min.css", ".js.map", ".css.map",
	".sqlite", ".db", ".pkl", ".onnx", ".pt", ".h5",
}

// Excluder decides which tree paths are left out of a code pack.
type Excluder struct {
	patterns []string
}

// NewExcluder returns an Excluder over DefaultExcludes plus extra.
func NewExcluder(extra []string) *Excluder {
	patterns := make([]string, 0, len(DefaultExcludes)+len(extra))
	for _, p := range append(append([]string(nil), DefaultExcludes...), extra...) {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			patterns = append(patterns, p)
		}
	}
	return &Excluder{patterns: patterns}
}

// Excluded reports whether path contains any exclusion pattern.
func (e *Excluder) Excluded(path string) bool {
	lower := strings.ToLower(path)
	for _, p := range e.patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
