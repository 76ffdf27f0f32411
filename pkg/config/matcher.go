package config

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// URLMatcher decides which page URLs get a content script.
type URLMatcher struct {
	matches  []glob.Glob
	excludes []glob.Glob
}

// NewURLMatcher compiles the match and exclude globs.
func NewURLMatcher(matches, excludes []string) (*URLMatcher, error) {
	um := &URLMatcher{}

	for _, pattern := range matches {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid match pattern '%s': %w", pattern, err)
		}
		um.matches = append(um.matches, g)
	}

	for _, pattern := range excludes {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern '%s': %w", pattern, err)
		}
		um.excludes = append(um.excludes, g)
	}

	return um, nil
}

// Matcher returns the browser URL matcher.
func (c *Config) Matcher() (*URLMatcher, error) {
	return NewURLMatcher(c.Browser.Matches, c.Browser.Excludes)
}

// Allows reports whether a content script should run on url.
func (um *URLMatcher) Allows(url string) bool {
	url = strings.TrimSpace(url)
	if url == "" {
		return false
	}

	// Excludes take precedence
	for _, g := range um.excludes {
		if g.Match(url) {
			return false
		}
	}

	if len(um.matches) == 0 {
		return true
	}
	for _, g := range um.matches {
		if g.Match(url) {
			return true
		}
	}
	return false
}
