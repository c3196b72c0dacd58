package pagination

import "testing"

var columns = map[string]string{
	"createdAt": "a.created_at",
	"date":      "a.date",
}

func TestNew_Defaults(t *testing.T) {
	r, err := New(0, 0, "", "", columns)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r.Page != 0 || r.Size != 10 || r.Sort != "createdAt" || !r.Desc {
		t.Fatalf("defaults = %+v", r)
	}
	if got := r.OrderBy(columns); got != "a.created_at DESC" {
		t.Fatalf("OrderBy = %q", got)
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		page      int
		size      int
		sort, dir string
	}{
		{"negative page", -1, 10, "", ""},
		{"size too large", 0, 101, "", ""},
		{"negative size", 0, -5, "", ""},
		{"unknown sort", 0, 10, "password", ""},
		{"bad direction", 0, 10, "date", "sideways"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.page, tt.size, tt.sort, tt.dir, columns); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNew_AscendingSort(t *testing.T) {
	r, err := New(2, 25, "date", "ASC", columns)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r.Offset() != 50 {
		t.Errorf("Offset = %d", r.Offset())
	}
	if got := r.OrderBy(columns); got != "a.date ASC" {
		t.Errorf("OrderBy = %q", got)
	}
}

func TestNewPage_Totals(t *testing.T) {
	req := Request{Page: 1, Size: 10}
	p := NewPage([]int{11, 12, 13}, req, 23)
	if p.TotalPages != 3 {
		t.Errorf("TotalPages = %d", p.TotalPages)
	}
	if !p.HasNext {
		t.Error("expected HasNext on page 1 of 3")
	}

	last := NewPage([]int{21, 22, 23}, Request{Page: 2, Size: 10}, 23)
	if last.HasNext {
		t.Error("last page should not have next")
	}

	empty := NewPage[int](nil, Default(), 0)
	if empty.Content == nil || empty.TotalPages != 0 {
		t.Errorf("empty page = %+v", empty)
	}
}

func TestMap(t *testing.T) {
	p := NewPage([]int{1, 2}, Default(), 2)
	m := Map(p, func(i int) string { return string(rune('a' + i)) })
	if len(m.Content) != 2 || m.Content[0] != "b" || m.TotalElements != 2 {
		t.Fatalf("Map = %+v", m)
	}
}
