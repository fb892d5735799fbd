package export

import (
	"context"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadscore/internal/model"
	"github.com/sells-group/leadscore/pkg/notion"
)

// Lead database property names.
const (
	propName            = "Name"
	propRecordID        = "Record ID"
	propSearch          = "Search"
	propAddress         = "Address"
	propPhone           = "Phone"
	propEmail           = "Email"
	propWebsite         = "Website"
	propOverall         = "Overall Score"
	propWebsiteQuality  = "Website Quality"
	propDigitalPresence = "Digital Presence"
	propSEO             = "SEO Score"
	propStatus          = "Analysis Status"
)

// NotionSink upserts one page per lead into a Notion database, keyed on the
// "Record ID" property.
type NotionSink struct {
	client notion.Client
	dbID   string
}

// NewNotionSink creates a NotionSink for database dbID.
func NewNotionSink(client notion.Client, dbID string) *NotionSink {
	return &NotionSink{client: client, dbID: dbID}
}

// Name implements Sink.
func (n *NotionSink) Name() string { return "notion" }

// Export implements Sink. A failed page write is counted and skipped.
func (n *NotionSink) Export(ctx context.Context, search *model.Search, records []model.BusinessRecord) (Result, error) {
	var res Result
	if len(records) == 0 {
		return res, nil
	}

	pages, err := notion.QueryAll(ctx, n.client, n.dbID, &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: propSearch,
			RichText: &notionapi.TextFilterCondition{Equals: search.ID},
		},
	})
	if err != nil {
		return res, eris.Wrap(err, "notion: load existing leads")
	}
	existing := make(map[string]string, len(pages))
	for _, p := range pages {
		if id := plainText(p.Properties[propRecordID]); id != "" {
			existing[id] = string(p.ID)
		}
	}

	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "notion: export cancelled")
		}

		props := leadProperties(search, r)
		if pageID, ok := existing[r.ID]; ok {
			_, err = n.client.UpdatePage(ctx, pageID, &notionapi.PageUpdateRequest{Properties: props})
			if err == nil {
				res.Updated++
				continue
			}
		} else {
			_, err = n.client.CreatePage(ctx, &notionapi.PageCreateRequest{
				Parent: notionapi.Parent{
					Type:       notionapi.ParentTypeDatabaseID,
					DatabaseID: notionapi.DatabaseID(n.dbID),
				},
				Properties: props,
			})
			if err == nil {
				res.Created++
				continue
			}
		}
		res.Failed++
		res.Errors = append(res.Errors, r.ID+": "+err.Error())
		zap.L().Warn("notion: lead write failed", zap.String("record_id", r.ID), zap.Error(err))
	}
	return res, nil
}

func leadProperties(search *model.Search, r model.BusinessRecord) notionapi.Properties {
	props := notionapi.Properties{
		propName:            notionapi.TitleProperty{Title: richText(r.Name)},
		propRecordID:        notionapi.RichTextProperty{RichText: richText(r.ID)},
		propSearch:          notionapi.RichTextProperty{RichText: richText(search.ID)},
		propAddress:         notionapi.RichTextProperty{RichText: richText(r.Address)},
		propWebsiteQuality:  notionapi.NumberProperty{Number: float64(r.WebsiteQualityScore)},
		propDigitalPresence: notionapi.NumberProperty{Number: float64(r.DigitalPresenceScore)},
		propSEO:             notionapi.NumberProperty{Number: float64(r.SEOScore)},
		propStatus:          notionapi.SelectProperty{Select: notionapi.Option{Name: string(r.AnalysisStatus)}},
	}
	if r.OverallScore != nil {
		props[propOverall] = notionapi.NumberProperty{Number: float64(*r.OverallScore)}
	}
	// Notion rejects empty phone, email and URL values.
	if r.Phone != "" {
		props[propPhone] = notionapi.PhoneNumberProperty{PhoneNumber: r.Phone}
	}
	if r.Email != "" {
		props[propEmail] = notionapi.EmailProperty{Email: r.Email}
	}
	if r.Website != "" {
		props[propWebsite] = notionapi.URLProperty{URL: r.Website}
	}
	return props
}

func richText(s string) []notionapi.RichText {
	if s == "" {
		return []notionapi.RichText{}
	}
	return []notionapi.RichText{{
		Type:      notionapi.ObjectTypeText,
		Text:      &notionapi.Text{Content: s},
		PlainText: s,
	}}
}

func plainText(prop notionapi.Property) string {
	var parts []notionapi.RichText
	switch p := prop.(type) {
	case *notionapi.RichTextProperty:
		parts = p.RichText
	case *notionapi.TitleProperty:
		parts = p.Title
	default:
		return ""
	}
	var b strings.Builder
	for _, rt := range parts {
		b.WriteString(rt.PlainText)
	}
	return strings.TrimSpace(b.String())
}
