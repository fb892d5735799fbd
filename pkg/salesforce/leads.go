package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Lead is the subset of the Lead sObject that sync reads back.
type Lead struct {
	ID      string `json:"Id" salesforce:"Id"`
	Company string `json:"Company" salesforce:"Company"`
	Website string `json:"Website" salesforce:"Website"`
}

// SyncResult tallies a lead sync.
type SyncResult struct {
	Created int
	Updated int
	Failed  int
	Errors  []string
}

// FindLeadsByWebsite returns existing leads keyed by website for the given
// sites. Empty sites are skipped.
func FindLeadsByWebsite(ctx context.Context, c Client, websites []string) (map[string]string, error) {
	found := make(map[string]string)
	var quoted []string
	for _, w := range websites {
		if w != "" {
			quoted = append(quoted, "'"+escapeSoql(w)+"'")
		}
	}

	for start := 0; start < len(quoted); start += maxBatchSize {
		end := min(start+maxBatchSize, len(quoted))
		soql := fmt.Sprintf("SELECT Id, Company, Website FROM Lead WHERE Website IN (%s)", strings.Join(quoted[start:end], ", "))

		var leads []Lead
		if err := c.Query(ctx, soql, &leads); err != nil {
			return nil, eris.Wrap(err, "sf: find leads by website")
		}
		for _, l := range leads {
			found[l.Website] = l.ID
		}
	}
	return found, nil
}

// SyncLeads updates leads whose Website already exists and inserts the rest,
// in batches of 200. Each lead map must carry Company and LastName.
func SyncLeads(ctx context.Context, c Client, leads []map[string]any) (SyncResult, error) {
	var res SyncResult
	if len(leads) == 0 {
		return res, nil
	}

	websites := make([]string, 0, len(leads))
	for _, l := range leads {
		if w, _ := l["Website"].(string); w != "" {
			websites = append(websites, w)
		}
	}
	existing, err := FindLeadsByWebsite(ctx, c, websites)
	if err != nil {
		return res, err
	}

	var inserts []map[string]any
	var updates []CollectionRecord
	for _, l := range leads {
		w, _ := l["Website"].(string)
		if id, ok := existing[w]; ok && w != "" {
			updates = append(updates, CollectionRecord{ID: id, Fields: l})
			continue
		}
		inserts = append(inserts, l)
	}

	for start := 0; start < len(updates); start += maxBatchSize {
		end := min(start+maxBatchSize, len(updates))
		results, err := c.UpdateCollection(ctx, "Lead", updates[start:end])
		if err != nil {
			return res, eris.Wrapf(err, "sf: update leads batch %d-%d", start, end)
		}
		res.tally(results, &res.Updated)
	}

	for start := 0; start < len(inserts); start += maxBatchSize {
		end := min(start+maxBatchSize, len(inserts))
		results, err := c.InsertCollection(ctx, "Lead", inserts[start:end])
		if err != nil {
			return res, eris.Wrapf(err, "sf: insert leads batch %d-%d", start, end)
		}
		res.tally(results, &res.Created)
	}

	return res, nil
}

func (r *SyncResult) tally(results []CollectionResult, ok *int) {
	for _, cr := range results {
		if cr.Success {
			*ok++
			continue
		}
		r.Failed++
		r.Errors = append(r.Errors, cr.Errors...)
	}
}

// escapeSoql escapes single quotes in SOQL string literals to prevent injection.
func escapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
