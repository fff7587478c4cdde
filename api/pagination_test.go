package api

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "", defaultPageLimit, 0},
		{"custom limit", "limit=50", 50, 0},
		{"custom offset", "offset=10", defaultPageLimit, 10},
		{"both", "limit=25&offset=5", 25, 5},
		{"limit exceeds max", "limit=500", maxPageLimit, 0},
		{"limit at max", "limit=200", maxPageLimit, 0},
		{"negative limit uses default", "limit=-1", defaultPageLimit, 0},
		{"negative offset uses zero", "offset=-5", defaultPageLimit, 0},
		{"non-numeric limit", "limit=abc", defaultPageLimit, 0},
		{"non-numeric offset", "offset=xyz", defaultPageLimit, 0},
		{"zero limit uses default", "limit=0", defaultPageLimit, 0},
		{"zero offset", "offset=0", defaultPageLimit, 0},
		{"limit one", "limit=1", 1, 0},
		{"large offset", "offset=999999", defaultPageLimit, 999999},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := "/test"
			if tt.query != "" {
				url += "?" + tt.query
			}
			r := httptest.NewRequest("GET", url, nil)
			limit, offset := parsePagination(r)
			assert.Equal(t, tt.wantLimit, limit, "limit")
			assert.Equal(t, tt.wantOffset, offset, "offset")
		})
	}
}

func TestPaginate(t *testing.T) {
	items := make([]int, 25)
	for i := range items {
		items[i] = i
	}
	tests := []struct {
		name      string
		query     string
		wantItems []int
		wantMore  bool
	}{
		{"first page", "limit=10", items[0:10], true},
		{"second page", "limit=10&offset=10", items[10:20], true},
		{"last page partial", "limit=10&offset=20", items[20:25], false},
		{"offset beyond total", "limit=10&offset=100", []int{}, false},
		{"exact fit", "limit=25", items, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/test?"+tt.query, nil)
			page, meta := paginate(r, items)
			assert.Equal(t, tt.wantItems, page)
			assert.Equal(t, 25, meta.TotalCount)
			assert.Equal(t, tt.wantMore, meta.HasMore)
		})
	}

	r := httptest.NewRequest("GET", "/test", nil)
	page, meta := paginate[string](r, nil)
	assert.NotNil(t, page, "empty page should encode as []")
	assert.Equal(t, 0, meta.TotalCount)
}
