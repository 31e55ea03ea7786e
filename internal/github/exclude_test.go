package github

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExcluder_Defaults(t *testing.T) {
	e := NewExcluder(nil)

	excluded := []string{
		"node_modules/react/index.js",
		"web/Node_Modules/x.js",
		"package-lock.json",
		"frontend/yarn.lock",
		"assets/Logo.PNG",
		"dist/bundle.js",
		"static/app.min.js",
		"release.zip",
		".git/config",
	}
	for _, p := range excluded {
		assert.True(t, e.Excluded(p), p)
	}

	kept := []string{
		"main.go",
		"src/App.tsx",
		".github/workflows/ci.yml",
		"README.md",
		"contracts/Token.sol",
	}
	for _, p := range kept {
		assert.False(t, e.Excluded(p), p)
	}
}

func TestExcluder_Extra(t *testing.T) {
	e := NewExcluder([]string{"  Fixtures/ ", ""})
	assert.True(t, e.Excluded("test/fixtures/big.json"))
	assert.False(t, e.Excluded("test/main_test.go"))
}

func TestExcluder_ExtensionSubstring(t *testing.T) {
	e := NewExcluder([]string{".csv"})
	assert.True(t, e.Excluded("data/Scores.CSV"))
	assert.False(t, e.Excluded("src/csvparse.go"))
}
