package discovery

import (
	_ "embed"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed industries.yaml
var industriesYAML []byte

// ErrUnknownIndustry is returned for an industry not in the catalog.
var ErrUnknownIndustry = eris.New("discovery: unknown industry")

// Catalog maps industry slugs to Places text query templates.
type Catalog map[string][]string

// LoadCatalog parses the embedded industry catalog.
func LoadCatalog() (Catalog, error) {
	return ParseCatalog(industriesYAML)
}

// ParseCatalog parses a catalog from YAML.
func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrap(err, "discovery: parse industry catalog")
	}
	for slug, queries := range c {
		if len(queries) == 0 {
			return nil, eris.Errorf("discovery: industry %q has no queries", slug)
		}
	}
	return c, nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug normalizes an industry label, so "Restaurants & Food" and
// "restaurants-food" name the same industry.
func Slug(industry string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(industry), "-"), "-")
}

// Queries renders the text queries for industry at location. An empty
// industry means "all".
func (c Catalog) Queries(industry, location string) ([]string, error) {
	slug := Slug(industry)
	if slug == "" {
		slug = "all"
	}
	templates, ok := c[slug]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownIndustry, "discovery: industry %q", industry)
	}
	out := make([]string, len(templates))
	for i, t := range templates {
		out[i] = strings.ReplaceAll(t, "{location}", location)
	}
	return out, nil
}

// Industries returns the catalog's slugs in sorted order.
func (c Catalog) Industries() []string {
	out := make([]string, 0, len(c))
	for slug := range c {
		out = append(out, slug)
	}
	sort.Strings(out)
	return out
}
