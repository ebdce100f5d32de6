package visacode

import (
	"testing"

	"github.com/punchamoorthee/visaops/internal/domain"
)

func TestNext(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		existing []string
		want     string
	}{
		{"gap in sequence", "C2025-", []string{"C2025-1", "C2025-3"}, "C2025-4"},
		{"empty", "C2025-", nil, "C2025-1"},
		{"other years ignored", "C2025-", []string{"C2024-9", "C2025-2"}, "C2025-3"},
		{"non numeric ignored", "C2025-", []string{"C2025-x", "C2025-7a", "C2025-", "C2025-2"}, "C2025-3"},
		{"other types ignored", "C2025-", []string{"CP2025-8", "R2025-5"}, "C2025-1"},
		{"unordered input", "R2026-", []string{"R2026-10", "R2026-9", "R2026-2"}, "R2026-11"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Next(tt.prefix, tt.existing); got != tt.want {
				t.Errorf("Next(%q, %v) = %q, want %q", tt.prefix, tt.existing, got, tt.want)
			}
		})
	}
}

func TestPrefix(t *testing.T) {
	cases := map[domain.VisaType]string{
		domain.VisaCover:     "C2025-",
		domain.VisaRegular:   "R2025-",
		domain.VisaCorporate: "CP2025-",
	}
	for typ, want := range cases {
		if got := Prefix(typ, 2025); got != want {
			t.Errorf("Prefix(%s) = %q, want %q", typ, got, want)
		}
	}
}

func TestSuffixRejectsSigns(t *testing.T) {
	if _, ok := Suffix("C2025-", "C2025-+4"); ok {
		t.Fatal("signed suffix accepted")
	}
}
