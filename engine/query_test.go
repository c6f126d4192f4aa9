// ABOUTME: Tests for query spec building
// ABOUTME: Verifies clamping, sentinel filters, and per-kind filter whitelists
package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harperreed/devicedrop/models"
)

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name    string
		kind    models.Kind
		page    int
		size    int
		filters map[string]string
		search  string
		want    models.QuerySpec
	}{
		{
			name: "clamps page and defaults size",
			kind: models.KindDevice,
			page: -3,
			want: models.QuerySpec{Kind: models.KindDevice, Page: 1, PageSize: models.DefaultPageSize, Filters: map[string]string{}},
		},
		{
			name: "caps page size",
			kind: models.KindUser,
			page: 2,
			size: 5000,
			want: models.QuerySpec{Kind: models.KindUser, Page: 2, PageSize: models.MaxPageSize, Filters: map[string]string{}},
		},
		{
			name:    "drops all, empty and unknown filters",
			kind:    models.KindDevice,
			page:    1,
			size:    10,
			filters: map[string]string{"status": "all", "type": " ", "category": "phones", "donor": "x"},
			want:    models.QuerySpec{Kind: models.KindDevice, Page: 1, PageSize: 10, Filters: map[string]string{"category": "phones"}},
		},
		{
			name:    "sentinel is case-insensitive",
			kind:    models.KindUser,
			page:    1,
			size:    10,
			filters: map[string]string{"role": "ALL", "organization": "Red Cross"},
			want:    models.QuerySpec{Kind: models.KindUser, Page: 1, PageSize: 10, Filters: map[string]string{"organization": "Red Cross"}},
		},
		{
			name:    "request search filter folds into search",
			kind:    models.KindRequest,
			page:    1,
			size:    10,
			filters: map[string]string{"status": "pending", "search": "laptop"},
			want:    models.QuerySpec{Kind: models.KindRequest, Page: 1, PageSize: 10, Filters: map[string]string{"status": "pending"}, Search: "laptop"},
		},
		{
			name:    "explicit search wins over search filter",
			kind:    models.KindRequest,
			page:    1,
			size:    10,
			filters: map[string]string{"search": "tablet"},
			search:  " school ",
			want:    models.QuerySpec{Kind: models.KindRequest, Page: 1, PageSize: 10, Filters: map[string]string{}, Search: "school"},
		},
		{
			name:    "search is not a device filter",
			kind:    models.KindDevice,
			page:    1,
			size:    10,
			filters: map[string]string{"search": "tablet"},
			want:    models.QuerySpec{Kind: models.KindDevice, Page: 1, PageSize: 10, Filters: map[string]string{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildQuery(tt.kind, tt.page, tt.size, tt.filters, tt.search)
			assert.Equal(t, tt.want, got)
		})
	}
}
