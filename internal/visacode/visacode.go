// Package visacode generates human-readable visa codes of the form
// "{TypePrefix}{year}-{n}", e.g. C2025-1.
package visacode

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/punchamoorthee/visaops/internal/domain"
)

// Prefix returns the code prefix shared by all visas of type t issued in year.
func Prefix(t domain.VisaType, year int) string {
	return fmt.Sprintf("%s%d-", t.Prefix(), year)
}

// Next returns prefix followed by one more than the largest numeric suffix
// among existing codes carrying that prefix. Codes of other years or types
// and codes with non-numeric suffixes are ignored.
func Next(prefix string, existing []string) string {
	max := 0
	for _, code := range existing {
		n, ok := Suffix(prefix, code)
		if ok && n > max {
			max = n
		}
	}
	return prefix + strconv.Itoa(max+1)
}

// Suffix extracts the sequence number of code under prefix.
func Suffix(prefix, code string) (int, bool) {
	rest, ok := strings.CutPrefix(code, prefix)
	if !ok || rest == "" {
		return 0, false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}
