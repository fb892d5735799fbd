package scrape

import (
	"net/url"
	"path"
	"strings"
)

// defaultExcludePatterns skip pages no scraper can read usefully: social
// profiles behind logins, and documents.
var defaultExcludePatterns = []string{
	"facebook.com/*",
	"instagram.com/*",
	"linkedin.com/*",
	"/*.pdf",
	"/*.doc",
	"/*.docx",
}

// PathMatcher filters URLs by glob pattern. Patterns starting with "/" match
// the path; other patterns match host+path with any "www." prefix removed.
// A trailing "/*" also matches deeper paths, so "facebook.com/*" matches
// "facebook.com/acme/about".
type PathMatcher struct {
	patterns []string
}

// NewPathMatcher creates a PathMatcher. Falls back to default patterns if
// none are provided.
func NewPathMatcher(patterns []string) *PathMatcher {
	if len(patterns) == 0 {
		patterns = defaultExcludePatterns
	}
	return &PathMatcher{patterns: patterns}
}

// Patterns returns the configured patterns.
func (m *PathMatcher) Patterns() []string {
	return m.patterns
}

// IsExcluded checks whether a URL matches any exclude pattern. Unparseable
// URLs are excluded.
func (m *PathMatcher) IsExcluded(rawURL string) bool {
	if m == nil {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	urlPath := strings.ToLower(u.Path)
	hostPath := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.") + urlPath
	if urlPath == "" {
		hostPath += "/"
	}

	for _, pattern := range m.patterns {
		pattern = strings.ToLower(pattern)
		target := hostPath
		if strings.HasPrefix(pattern, "/") {
			target = urlPath
		}
		if matchSegmented(pattern, target) {
			return true
		}
	}
	return false
}

// matchSegmented performs glob matching where a pattern like "/blog/*"
// matches both "/blog/post" and "/blog/deep/nested/path".
func matchSegmented(pattern, target string) bool {
	if ok, _ := path.Match(pattern, target); ok {
		return true
	}
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if target == prefix || strings.HasPrefix(target, prefix+"/") {
			return true
		}
	}
	return false
}
