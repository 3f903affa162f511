package pagination

import (
	"net/http/httptest"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		page    int
		perPage int
		sortBy  string
		order   string
	}{
		{"defaults", "", 1, DefaultPerPage, "created_at", "desc"},
		{"explicit", "?page=3&per_page=10&sort_by=email&order=ASC", 3, 10, "email", "asc"},
		{"limit alias", "?limit=50", 1, 50, "created_at", "desc"},
		{"capped", "?per_page=10000", 1, MaxPerPage, "created_at", "desc"},
		{"garbage", "?page=-2&per_page=abc&order=sideways", 1, DefaultPerPage, "created_at", "desc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/v1/questionnaires"+tt.query, nil)
			p := Parse(r, "created_at", "desc")

			if p.Page != tt.page || p.PerPage != tt.perPage || p.SortBy != tt.sortBy || p.SortOrder != tt.order {
				t.Errorf("Parse() = %+v, want page=%d per_page=%d sort_by=%s order=%s",
					p, tt.page, tt.perPage, tt.sortBy, tt.order)
			}
		})
	}
}

func TestLimitOffset(t *testing.T) {
	p := Params{Page: 3, PerPage: 20}
	if p.Limit() != 20 || p.Offset() != 40 {
		t.Errorf("unexpected limit/offset %d/%d", p.Limit(), p.Offset())
	}
}

func TestBuildMeta(t *testing.T) {
	p := Params{Page: 2, PerPage: 25}

	meta := BuildMeta(51, p)
	if meta.TotalPages != 3 || meta.Total != 51 || meta.Page != 2 || meta.PerPage != 25 {
		t.Errorf("unexpected meta %+v", meta)
	}

	if BuildMeta(0, p).TotalPages != 0 {
		t.Error("expected zero pages for empty result")
	}
}
