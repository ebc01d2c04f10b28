package google

import "testing"

func TestToRowsTrimsAndStringifies(t *testing.T) {
	values := [][]interface{}{
		{"recordId", "date"},
		{" a ", 2024, 10000.5},
		{},
	}
	rows := toRows(values)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[1][0] != "a" || rows[1][1] != "2024" || rows[1][2] != "10000.5" {
		t.Fatalf("unexpected row: %#v", rows[1])
	}
	if len(rows[2]) != 0 {
		t.Fatalf("empty row should stay empty, got %#v", rows[2])
	}
}

func TestIndexOfRecord(t *testing.T) {
	values := [][]interface{}{
		{"recordId"},
		{"a"},
		{},
		{" b "},
	}
	cases := []struct {
		id   string
		want int
	}{
		{"a", 2},
		{"b", 4},
		{"recordId", 0},
		{"", 0},
		{"zzz", 0},
	}
	for _, tc := range cases {
		if got := indexOfRecord(values, tc.id); got != tc.want {
			t.Errorf("indexOfRecord(%q) = %d, want %d", tc.id, got, tc.want)
		}
	}
}
