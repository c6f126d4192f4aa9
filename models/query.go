// ABOUTME: Paginated query descriptors and page results
// ABOUTME: QuerySpec identifies one page request; PageResult is what a list call returns
package models

import (
	"sort"
	"strconv"
	"strings"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// FilterSearch is the Request filter key that doubles as free-text search.
const FilterSearch = "search"

var filterableFields = map[Kind][]string{
	KindDevice:     {"status", "type", "category", "condition"},
	KindRequest:    {"status", FilterSearch},
	KindUser:       {"role", "status", "organization"},
	KindTeamMember: {"status"},
}

// FilterableFields returns the filter keys a kind accepts.
func FilterableFields(kind Kind) []string {
	return append([]string(nil), filterableFields[kind]...)
}

// IsFilterable reports whether key is a declared filter for kind.
func IsFilterable(kind Kind, key string) bool {
	for _, f := range filterableFields[kind] {
		if f == key {
			return true
		}
	}
	return false
}

// QuerySpec describes one page request against a collection.
type QuerySpec struct {
	Kind     Kind              `json:"kind"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Filters  map[string]string `json:"filters,omitempty"`
	Search   string            `json:"search,omitempty"`
}

// Key is a canonical encoding of the spec; equal specs have equal keys.
func (q QuerySpec) Key() string {
	var b strings.Builder
	b.WriteString(string(q.Kind))
	b.WriteString("|p=")
	b.WriteString(strconv.Itoa(q.Page))
	b.WriteString("|n=")
	b.WriteString(strconv.Itoa(q.PageSize))
	keys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString("|f:")
		b.WriteString(strconv.Quote(k))
		b.WriteString("=")
		b.WriteString(strconv.Quote(q.Filters[k]))
	}
	b.WriteString("|q=")
	b.WriteString(strconv.Quote(q.Search))
	return b.String()
}

// Equal reports whether two specs request exactly the same page.
func (q QuerySpec) Equal(other QuerySpec) bool {
	return q.Key() == other.Key()
}

// WithPage returns a copy of the spec pointing at another page.
func (q QuerySpec) WithPage(page int) QuerySpec {
	c := q
	if page < 1 {
		page = 1
	}
	c.Page = page
	c.Filters = make(map[string]string, len(q.Filters))
	for k, v := range q.Filters {
		c.Filters[k] = v
	}
	return c
}

// ListResult is the raw answer of a remote list call.
type ListResult struct {
	Items      []*Record `json:"items"`
	Total      int       `json:"total"`
	TotalPages int       `json:"total_pages"`
}

// PageResult is one page of a collection as held by the console.
type PageResult struct {
	Items      []*Record `json:"items"`
	Page       int       `json:"page"`
	TotalPages int       `json:"total_pages"`
	Total      int       `json:"total"`
}

// NewPageResult shapes a list answer for spec so that the page never holds
// more than PageSize items and Page never exceeds a known TotalPages.
func NewPageResult(spec QuerySpec, res ListResult) *PageResult {
	items := res.Items
	if spec.PageSize > 0 && len(items) > spec.PageSize {
		items = items[:spec.PageSize]
	}
	totalPages := res.TotalPages
	if totalPages == 0 && res.Total > 0 && spec.PageSize > 0 {
		totalPages = (res.Total + spec.PageSize - 1) / spec.PageSize
	}
	page := spec.Page
	if totalPages >= 1 && page > totalPages {
		page = totalPages
	}
	out := make([]*Record, 0, len(items))
	for _, r := range items {
		if r != nil {
			out = append(out, r)
		}
	}
	return &PageResult{
		Items:      out,
		Page:       page,
		TotalPages: totalPages,
		Total:      res.Total,
	}
}

// Clone copies the page and its records.
func (p *PageResult) Clone() *PageResult {
	if p == nil {
		return nil
	}
	c := *p
	c.Items = make([]*Record, len(p.Items))
	for i, r := range p.Items {
		c.Items[i] = r.Clone()
	}
	return &c
}

// Find returns the record with id, if present on the page.
func (p *PageResult) Find(id string) (*Record, bool) {
	if p == nil {
		return nil, false
	}
	for _, r := range p.Items {
		if r.ID == id {
			return r, true
		}
	}
	return nil, false
}
