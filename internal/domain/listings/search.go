package listings

import "strings"

const (
	defaultSearchLimit = 24
	maxSearchLimit     = 60
)

// SearchParams describe catalog filters and paging options.
type SearchParams struct {
	Provider   ProviderID
	Category   string
	City       string
	Query      string
	OnlyActive bool
	Limit      int
	Offset     int
}

// Normalized returns a sanitized copy of params.
func (p SearchParams) Normalized() SearchParams {
	normalized := p
	normalized.Category = normalizeToken(normalized.Category)
	normalized.City = strings.TrimSpace(normalized.City)
	normalized.Query = strings.TrimSpace(normalized.Query)
	if normalized.Limit <= 0 {
		normalized.Limit = defaultSearchLimit
	}
	if normalized.Limit > maxSearchLimit {
		normalized.Limit = maxSearchLimit
	}
	if normalized.Offset < 0 {
		normalized.Offset = 0
	}
	return normalized
}

// Matches applies the filters to a single listing; storage backends without
// native querying use it directly.
func (p SearchParams) Matches(l *Listing) bool {
	if l == nil {
		return false
	}
	if p.OnlyActive && !l.IsActive {
		return false
	}
	if p.Provider != "" && l.Provider != p.Provider {
		return false
	}
	if p.Category != "" && l.Category != p.Category {
		return false
	}
	if p.City != "" && !strings.EqualFold(l.City, p.City) {
		return false
	}
	if p.Query != "" {
		q := strings.ToLower(p.Query)
		if !strings.Contains(strings.ToLower(l.Title), q) && !strings.Contains(strings.ToLower(l.Description), q) {
			return false
		}
	}
	return true
}

// SearchResult wraps search hits with meta.
type SearchResult struct {
	Items []*Listing
	Total int
}
