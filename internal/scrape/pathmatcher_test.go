package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathMatcher_Defaults(t *testing.T) {
	t.Parallel()
	m := NewPathMatcher(nil)

	tests := []struct {
		url      string
		excluded bool
	}{
		{"https://www.facebook.com/rossispizza", true},
		{"https://facebook.com", true},
		{"https://instagram.com/rossis/", true},
		{"https://www.linkedin.com/company/acme", true},
		{"https://rossis.com/menu.pdf", true},
		{"https://rossis.com/MENU.DOCX", true},
		{"https://rossis.com/", false},
		{"https://rossis.com/menu", false},
		{"https://notfacebook.example.com/page", false},
		{"https://rossis.com/files/menu.pdf", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.excluded, m.IsExcluded(tt.url))
		})
	}
}

func TestPathMatcher_CustomPatterns(t *testing.T) {
	m := NewPathMatcher([]string{"/Blog/*", "yelp.com/*"})

	assert.Equal(t, []string{"/Blog/*", "yelp.com/*"}, m.Patterns())
	assert.True(t, m.IsExcluded("https://acme.com/blog/post"))
	assert.True(t, m.IsExcluded("https://acme.com/BLOG"))
	assert.True(t, m.IsExcluded("https://www.yelp.com/biz/acme"))
	assert.False(t, m.IsExcluded("https://acme.com/about"))
	assert.False(t, m.IsExcluded("https://facebook.com/acme"))
}

func TestPathMatcher_InvalidURL(t *testing.T) {
	m := NewPathMatcher(nil)
	assert.True(t, m.IsExcluded("://invalid"))
}

func TestPathMatcher_Nil(t *testing.T) {
	var m *PathMatcher
	assert.False(t, m.IsExcluded("https://facebook.com/acme"))
}

func TestMatchSegmented(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		pattern string
		target  string
		match   bool
	}{
		{"single segment", "/blog/*", "/blog/post", true},
		{"deep path", "/blog/*", "/blog/2024/01/post", true},
		{"prefix itself", "/blog/*", "/blog", true},
		{"trailing slash", "/blog/*", "/blog/", true},
		{"other path", "/blog/*", "/about", false},
		{"root glob", "/*.pdf", "/report.pdf", true},
		{"nested glob", "/*.pdf", "/docs/report.pdf", false},
		{"host pattern", "facebook.com/*", "facebook.com/acme/about", true},
		{"host prefix only", "facebook.com/*", "facebook.community/x", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.match, matchSegmented(tt.pattern, tt.target))
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"rossis.com", "https://rossis.com", false},
		{"  http://rossis.com/menu ", "http://rossis.com/menu", false},
		{"https://rossis.com", "https://rossis.com", false},
		{"", "", true},
		{"ftp://rossis.com", "", true},
		{"https://", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizeURL(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
