package db

import (
	"reflect"
	"testing"
)

func TestSearchQuery_Build(t *testing.T) {
	q := NewSearchQuery("appointment a JOIN patient p ON p.id = a.patient_id", "a.id")
	q.AddEq("a.patient_id", int64(3))
	q.AddContains("Ben", "p.first_name", "p.last_name")
	q.OrderBy("a.starts_at ASC, a.id ASC")

	wantCount := "SELECT COUNT(*) FROM appointment a JOIN patient p ON p.id = a.patient_id WHERE 1=1" +
		" AND a.patient_id = $1 AND (p.first_name ILIKE $2 OR p.last_name ILIKE $2)"
	if got := q.CountSQL(); got != wantCount {
		t.Errorf("CountSQL:\n got %s\nwant %s", got, wantCount)
	}

	wantData := "SELECT a.id FROM appointment a JOIN patient p ON p.id = a.patient_id WHERE 1=1" +
		" AND a.patient_id = $1 AND (p.first_name ILIKE $2 OR p.last_name ILIKE $2)" +
		" ORDER BY a.starts_at ASC, a.id ASC LIMIT $3 OFFSET $4"
	if got := q.DataSQL(); got != wantData {
		t.Errorf("DataSQL:\n got %s\nwant %s", got, wantData)
	}

	wantArgs := []interface{}{int64(3), "%Ben%", 20, 40}
	if got := q.DataArgs(20, 40); !reflect.DeepEqual(got, wantArgs) {
		t.Errorf("DataArgs: got %v, want %v", got, wantArgs)
	}
	if len(q.CountArgs()) != 2 {
		t.Errorf("expected 2 count args, got %d", len(q.CountArgs()))
	}
}

func TestSearchQuery_EmptyContainsIsIgnored(t *testing.T) {
	q := NewSearchQuery("patient", "id")
	q.AddContains("", "last_name")
	if q.Idx() != 1 {
		t.Errorf("expected no placeholder consumed, idx=%d", q.Idx())
	}
}

func TestContainsPattern(t *testing.T) {
	tests := map[string]string{
		"amrani": "%amrani%",
		"50%":    `%50\%%`,
		"a_b":    `%a\_b%`,
		`c:\x`:   `%c:\\x%`,
	}
	for in, want := range tests {
		if got := ContainsPattern(in); got != want {
			t.Errorf("ContainsPattern(%q) = %q, want %q", in, got, want)
		}
	}
}
