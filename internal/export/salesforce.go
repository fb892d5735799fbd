package export

import (
	"context"
	"fmt"

	"github.com/sells-group/leadscore/internal/model"
	"github.com/sells-group/leadscore/pkg/salesforce"
)

const leadSource = "LeadScore"

// SalesforceSink syncs records to Lead sObjects, updating leads that already
// carry the record's website.
type SalesforceSink struct {
	client salesforce.Client
}

// NewSalesforceSink creates a SalesforceSink.
func NewSalesforceSink(client salesforce.Client) *SalesforceSink {
	return &SalesforceSink{client: client}
}

// Name implements Sink.
func (s *SalesforceSink) Name() string { return "salesforce" }

// Export implements Sink.
func (s *SalesforceSink) Export(ctx context.Context, search *model.Search, records []model.BusinessRecord) (Result, error) {
	leads := make([]map[string]any, 0, len(records))
	for _, r := range records {
		leads = append(leads, leadFields(search, r))
	}

	sync, err := salesforce.SyncLeads(ctx, s.client, leads)
	res := Result{
		Created: sync.Created,
		Updated: sync.Updated,
		Failed:  sync.Failed,
		Errors:  sync.Errors,
	}
	return res, err
}

// leadFields maps a record onto Lead fields. The business name doubles as
// LastName, which Salesforce requires.
func leadFields(search *model.Search, r model.BusinessRecord) map[string]any {
	fields := map[string]any{
		"Company":    r.Name,
		"LastName":   r.Name,
		"LeadSource": leadSource,
		"Description": fmt.Sprintf("Overall %s/100 (website %d, presence %d, SEO %d). Search: %s, %s.",
			overallOrNA(r), r.WebsiteQualityScore, r.DigitalPresenceScore, r.SEOScore, search.Industry, search.Location),
	}
	if r.Website != "" {
		fields["Website"] = r.Website
	}
	if r.Phone != "" {
		fields["Phone"] = r.Phone
	}
	if r.Email != "" {
		fields["Email"] = r.Email
	}
	if r.Address != "" {
		fields["Street"] = r.Address
	}
	return fields
}

func overallOrNA(r model.BusinessRecord) string {
	if s := overallString(r); s != "" {
		return s
	}
	return "n/a"
}
