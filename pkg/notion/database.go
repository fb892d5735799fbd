package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// QueryAll fetches every page matching req from a database, following
// cursors until HasMore is false. A nil req queries without a filter.
func QueryAll(ctx context.Context, c Client, dbID string, req *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	var all []notionapi.Page

	next := &notionapi.DatabaseQueryRequest{}
	if req != nil {
		next.Filter = req.Filter
		next.Sorts = req.Sorts
		next.PageSize = req.PageSize
	}

	for {
		resp, err := c.QueryDatabase(ctx, dbID, next)
		if err != nil {
			return nil, eris.Wrap(err, "notion: query all page")
		}
		all = append(all, resp.Results...)
		if !resp.HasMore {
			return all, nil
		}
		next = &notionapi.DatabaseQueryRequest{
			Filter:      next.Filter,
			Sorts:       next.Sorts,
			PageSize:    next.PageSize,
			StartCursor: resp.NextCursor,
		}
	}
}
