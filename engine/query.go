// ABOUTME: Builds normalized QuerySpecs from user-chosen filters
// ABOUTME: Pure function; clamps paging and drops sentinel or undeclared filters
package engine

import (
	"strings"

	"github.com/harperreed/devicedrop/models"
)

// FilterAll is the UI sentinel meaning "no filter".
const FilterAll = "all"

// BuildQuery normalizes a page request. It never fails: pages below 1 are
// clamped, page sizes fall back to the default and are capped, and filter
// values that are empty or "all" are omitted along with undeclared keys.
func BuildQuery(kind models.Kind, page, pageSize int, filters map[string]string, search string) models.QuerySpec {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = models.DefaultPageSize
	}
	if pageSize > models.MaxPageSize {
		pageSize = models.MaxPageSize
	}

	spec := models.QuerySpec{
		Kind:     kind,
		Page:     page,
		PageSize: pageSize,
		Filters:  make(map[string]string),
		Search:   strings.TrimSpace(search),
	}

	for key, value := range filters {
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if value == "" || strings.EqualFold(value, FilterAll) {
			continue
		}
		if !models.IsFilterable(kind, key) {
			continue
		}
		spec.Filters[key] = value
	}

	// Requests expose search as a filter; keep one canonical place for it.
	if q, ok := spec.Filters[models.FilterSearch]; ok {
		if spec.Search == "" {
			spec.Search = q
		}
		delete(spec.Filters, models.FilterSearch)
	}

	return spec
}
