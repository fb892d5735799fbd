package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscore/internal/model"
	"github.com/sells-group/leadscore/internal/scrape"
	"github.com/sells-group/leadscore/pkg/anthropic"
	"github.com/sells-group/leadscore/pkg/perplexity"
)

const (
	promptContentChars = 2000
	raterMaxTokens     = 100
	raterTemperature   = 0.1
)

// Rating is a language model's rubric score for one page.
type Rating struct {
	Quality int
	SEO     int
}

// Rater scores a fetched page against the website rubric.
type Rater interface {
	Rate(ctx context.Context, page *scrape.Page, businessName string) (Rating, error)
	Name() string
}

const rubricPrompt = `Analyze this website for %q and provide scores (0-40 for website quality, 0-30 for SEO):

WEBSITE CONTENT:
%s

METADATA:
Title: %s
Description: %s

Score based on:
WEBSITE QUALITY (0-40):
- Professional design and layout (0-10)
- Mobile responsiveness (0-10)
- Content quality and completeness (0-10)
- User experience and navigation (0-10)

SEO (0-30):
- Title and meta descriptions (0-10)
- Header structure and content (0-10)
- Overall SEO optimization (0-10)

Respond with only a JSON object: {"websiteQuality": number, "seo": number}`

// BuildPrompt renders the rubric prompt for a page.
func BuildPrompt(page *scrape.Page, businessName string) string {
	content := page.Content()
	if r := []rune(content); len(r) > promptContentChars {
		content = string(r[:promptContentChars])
	}
	return fmt.Sprintf(rubricPrompt, businessName, content, orNone(page.Title), orNone(page.Description))
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "None"
	}
	return s
}

type ratingReply struct {
	WebsiteQuality *float64 `json:"websiteQuality"`
	SEO            *float64 `json:"seo"`
}

// ParseRating extracts the rating JSON object from a model reply. Values are
// rounded and clamped to the rubric ranges. A reply without both fields is a
// *ParseError.
func ParseRating(provider, reply string) (Rating, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return Rating{}, NewParseError(provider, reply, eris.New("no json object in reply"))
	}

	var r ratingReply
	if err := json.Unmarshal([]byte(reply[start:end+1]), &r); err != nil {
		return Rating{}, NewParseError(provider, reply, eris.Wrap(err, "decode rating"))
	}
	if r.WebsiteQuality == nil || r.SEO == nil {
		return Rating{}, NewParseError(provider, reply, eris.New("rating missing websiteQuality or seo"))
	}
	return Rating{
		Quality: clamp(int(math.Round(*r.WebsiteQuality)), 0, model.MaxWebsiteQuality),
		SEO:     clamp(int(math.Round(*r.SEO)), 0, model.MaxSEO),
	}, nil
}

// AnthropicRater rates pages with the Anthropic Messages API.
type AnthropicRater struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicRater creates a rater. An empty model uses anthropic.DefaultModel
// and a non-positive maxTokens uses the rubric default.
func NewAnthropicRater(client anthropic.Client, model string, maxTokens int64) *AnthropicRater {
	if model == "" {
		model = anthropic.DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = raterMaxTokens
	}
	return &AnthropicRater{client: client, model: model, maxTokens: maxTokens}
}

// Name implements Rater.
func (r *AnthropicRater) Name() string { return "anthropic" }

// Rate implements Rater.
func (r *AnthropicRater) Rate(ctx context.Context, page *scrape.Page, businessName string) (Rating, error) {
	temp := raterTemperature
	resp, err := r.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       r.model,
		MaxTokens:   r.maxTokens,
		Temperature: &temp,
		Messages: []anthropic.Message{
			{Role: "user", Content: BuildPrompt(page, businessName)},
		},
	})
	if err != nil {
		return Rating{}, err
	}
	resp.Usage.LogCost(r.model, "website_rating")
	return ParseRating(r.Name(), resp.Text())
}

// PerplexityRater rates pages with Perplexity chat completions.
type PerplexityRater struct {
	client perplexity.Client
	model  string
}

// NewPerplexityRater creates a rater. An empty model uses the client default.
func NewPerplexityRater(client perplexity.Client, model string) *PerplexityRater {
	return &PerplexityRater{client: client, model: model}
}

// Name implements Rater.
func (r *PerplexityRater) Name() string { return "perplexity" }

// Rate implements Rater.
func (r *PerplexityRater) Rate(ctx context.Context, page *scrape.Page, businessName string) (Rating, error) {
	temp := raterTemperature
	maxTokens := raterMaxTokens
	resp, err := r.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Model:       r.model,
		Temperature: &temp,
		MaxTokens:   &maxTokens,
		Messages: []perplexity.Message{
			{Role: "user", Content: BuildPrompt(page, businessName)},
		},
	})
	if err != nil {
		return Rating{}, err
	}
	return ParseRating(r.Name(), resp.Text())
}
