// Package approval merges visas with their approval history and decides how
// a response moves a visa along its approver route.
package approval

import (
	"sort"
	"strings"

	"github.com/punchamoorthee/visaops/internal/domain"
)

// IsApproved reports whether a stored history response counts as an approval.
func IsApproved(response string) bool {
	return strings.EqualFold(strings.TrimSpace(response), string(domain.ResponseApproved))
}

// Merge joins visas with history rows by code. A row is Approved when any
// history row for its code carries an approval; the latest response is
// attached for display. Rows are sorted newest first.
func Merge(visas []domain.Visa, history []domain.ApprovalHistory) []domain.ApprovalRow {
	byCode := make(map[string][]domain.ApprovalHistory, len(history))
	for _, h := range history {
		byCode[h.Code] = append(byCode[h.Code], h)
	}

	rows := make([]domain.ApprovalRow, 0, len(visas))
	for _, v := range visas {
		row := domain.ApprovalRow{Visa: v}
		var latest *domain.ApprovalHistory
		for i, h := range byCode[v.Code] {
			if IsApproved(h.Response) {
				row.Approved = true
			}
			if latest == nil || h.CreatedAt.After(latest.CreatedAt) {
				latest = &byCode[v.Code][i]
			}
		}
		if latest != nil {
			at := latest.CreatedAt
			row.LastResponse = latest.Response
			row.LastResponder = latest.Approver
			row.RespondedAt = &at
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].Code > rows[j].Code
		}
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	return rows
}

// Codes returns the codes of visas in order, for history lookups.
func Codes(visas []domain.Visa) []string {
	codes := make([]string, len(visas))
	for i, v := range visas {
		codes[i] = v.Code
	}
	return codes
}
