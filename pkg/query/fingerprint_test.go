package query

import (
	"strings"
	"testing"
)

func TestFingerprint_NormalizesEquivalentQueries(t *testing.T) {
	base := Fingerprint("select * from sales")

	equivalent := []string{
		"select * from sales",
		"  select * from sales  ",
		"select  *  from\tsales",
		"select * from\nsales;",
		"select * from sales;;",
	}
	for _, sql := range equivalent {
		if got := Fingerprint(sql); got != base {
			t.Errorf("Fingerprint(%q) = %s, want %s", sql, got, base)
		}
	}
}

func TestFingerprint_DistinguishesDifferentQueries(t *testing.T) {
	a := Fingerprint("select * from sales")
	b := Fingerprint("select * from Sales")
	c := Fingerprint("select id from sales")

	if a == b {
		t.Error("case difference collapsed; identifiers can be case-sensitive")
	}
	if a == c {
		t.Error("different queries share a fingerprint")
	}
}

func TestFingerprint_Shape(t *testing.T) {
	got := Fingerprint("select 1")
	if len(got) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(got))
	}
	if strings.ToLower(got) != got {
		t.Error("fingerprint is not lowercase hex")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trims and collapses", "  select   1  ", "select 1"},
		{"strips trailing semicolon", "select 1;", "select 1"},
		{"strips repeated semicolons", "select 1 ; ;", "select 1"},
		{"keeps internal semicolons", "select ';' as s", "select ';' as s"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
