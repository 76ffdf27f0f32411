package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLMatcher(t *testing.T) {
	tests := []struct {
		name     string
		matches  []string
		excludes []string
		url      string
		want     bool
	}{
		{name: "default https", matches: []string{"https://*"}, url: "https://example.com/a/b", want: true},
		{name: "scheme not matched", matches: []string{"https://*"}, url: "file:///etc/hosts", want: false},
		{name: "exclude wins", matches: []string{"https://*"}, excludes: []string{"https://*.bank.com/*"}, url: "https://www.bank.com/login", want: false},
		{name: "no matches allows all", url: "http://localhost:8080/", want: true},
		{name: "exclude without matches", excludes: []string{"about:*"}, url: "about:blank", want: false},
		{name: "empty url", matches: []string{"*"}, url: "  ", want: false},
		{name: "host glob", matches: []string{"https://{docs,help}.example.com/*"}, url: "https://help.example.com/faq", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			um, err := NewURLMatcher(tt.matches, tt.excludes)
			require.NoError(t, err)
			assert.Equal(t, tt.want, um.Allows(tt.url))
		})
	}
}

func TestURLMatcherInvalidPattern(t *testing.T) {
	_, err := NewURLMatcher([]string{"https://["}, nil)
	assert.Error(t, err)

	_, err = NewURLMatcher(nil, []string{"["})
	assert.Error(t, err)
}

func TestDefaultMatcherSkipsBrowserPages(t *testing.T) {
	um, err := DefaultConfig().Matcher()
	require.NoError(t, err)

	assert.True(t, um.Allows("https://example.com"))
	assert.False(t, um.Allows("about:blank"))
	assert.False(t, um.Allows("chrome://settings"))
}
