package model

import (
	"time"
)

// DefaultPageSize is the number of records shown per results page.
const DefaultPageSize = 10

// Search is one user search for local businesses.
type Search struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Location     string    `json:"location"`
	Industry     string    `json:"industry"`
	RadiusMiles  float64   `json:"radius"`
	ResultsCount int       `json:"results_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// Scope selects the records of a search a batch or progress query covers.
// Page 0 means the entire search.
type Scope struct {
	SearchID string `json:"search_id"`
	Page     int    `json:"page,omitempty"`
	PageSize int    `json:"page_size,omitempty"`
}

// SearchScope returns a scope covering an entire search.
func SearchScope(searchID string) Scope {
	return Scope{SearchID: searchID}
}

// PageScope returns a scope covering one page of a search. A non-positive
// pageSize falls back to DefaultPageSize.
func PageScope(searchID string, page, pageSize int) Scope {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}
	return Scope{SearchID: searchID, Page: page, PageSize: pageSize}
}

// IsPage reports whether the scope is restricted to a single page.
func (s Scope) IsPage() bool {
	return s.Page > 0
}

// Offset returns the zero-based row offset of the page window.
func (s Scope) Offset() int {
	if !s.IsPage() {
		return 0
	}
	return (s.Page - 1) * s.Limit()
}

// Limit returns the page window size, or 0 for an entire search.
func (s Scope) Limit() int {
	if !s.IsPage() {
		return 0
	}
	if s.PageSize <= 0 {
		return DefaultPageSize
	}
	return s.PageSize
}

// String renders the scope for logs.
func (s Scope) String() string {
	if !s.IsPage() {
		return "search"
	}
	return "page"
}
