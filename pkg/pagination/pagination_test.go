package pagination

import "testing"

func TestNormalizeLimit(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{in: 0, want: DefaultLimit},
		{in: -5, want: DefaultLimit},
		{in: 1, want: 1},
		{in: 100, want: 100},
		{in: 101, want: MaxLimit},
	}
	for _, tt := range tests {
		if got := NormalizeLimit(tt.in); got != tt.want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestOffset(t *testing.T) {
	tests := []struct {
		page  int
		limit int
		want  int
	}{
		{page: 1, limit: 10, want: 0},
		{page: 2, limit: 10, want: 10},
		{page: 3, limit: 7, want: 14},
		{page: 0, limit: 10, want: 0},
		{page: -1, limit: 10, want: 0},
	}
	for _, tt := range tests {
		p := Params{Page: tt.page, Limit: tt.limit}
		if got := p.Offset(); got != tt.want {
			t.Fatalf("Offset(page=%d limit=%d) = %d, want %d", tt.page, tt.limit, got, tt.want)
		}
	}
}

func TestBuildMeta(t *testing.T) {
	tests := []struct {
		name  string
		total int64
		page  int
		limit int
		pages int
	}{
		{name: "exact division", total: 100, page: 1, limit: 10, pages: 10},
		{name: "remainder rounds up", total: 101, page: 1, limit: 10, pages: 11},
		{name: "single partial page", total: 3, page: 1, limit: 10, pages: 1},
		{name: "empty", total: 0, page: 1, limit: 10, pages: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := BuildMeta(tt.total, Params{Page: tt.page, Limit: tt.limit})
			if meta.Pages != tt.pages {
				t.Fatalf("expected %d pages, got %d", tt.pages, meta.Pages)
			}
			if meta.Total != tt.total {
				t.Fatalf("expected total %d, got %d", tt.total, meta.Total)
			}
		})
	}
}
