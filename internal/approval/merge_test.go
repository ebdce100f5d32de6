package approval

import (
	"testing"
	"time"

	"github.com/punchamoorthee/visaops/internal/domain"
)

var base = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func TestMergeMarksApproved(t *testing.T) {
	visas := []domain.Visa{{Code: "X", CreatedAt: base}}
	history := []domain.ApprovalHistory{{Code: "X", Response: "approved", Approver: "ana", CreatedAt: base.Add(time.Hour)}}

	rows := Merge(visas, history)
	if len(rows) != 1 || !rows[0].Approved {
		t.Fatalf("rows = %+v, want X approved", rows)
	}
	if rows[0].LastResponder != "ana" || rows[0].RespondedAt == nil {
		t.Fatalf("latest response not attached: %+v", rows[0])
	}
}

func TestMergeOtherResponsesNotApproved(t *testing.T) {
	for _, resp := range []string{"Declined", "Cancelled", "pending", ""} {
		rows := Merge(
			[]domain.Visa{{Code: "X", CreatedAt: base}},
			[]domain.ApprovalHistory{{Code: "X", Response: resp, CreatedAt: base}},
		)
		if rows[0].Approved {
			t.Errorf("response %q marked approved", resp)
		}
	}

	rows := Merge([]domain.Visa{{Code: "Y", CreatedAt: base}}, nil)
	if rows[0].Approved || rows[0].RespondedAt != nil {
		t.Errorf("no history should leave row unapproved: %+v", rows[0])
	}
}

func TestMergeSortsNewestFirst(t *testing.T) {
	visas := []domain.Visa{
		{Code: "C2025-1", CreatedAt: base},
		{Code: "C2025-3", CreatedAt: base.Add(2 * time.Hour)},
		{Code: "C2025-2", CreatedAt: base.Add(time.Hour)},
	}
	history := []domain.ApprovalHistory{{Code: "C2025-2", Response: "Approved", CreatedAt: base}}

	rows := Merge(visas, history)
	want := []string{"C2025-3", "C2025-2", "C2025-1"}
	for i, code := range want {
		if rows[i].Code != code {
			t.Fatalf("rows[%d] = %s, want %s", i, rows[i].Code, code)
		}
	}
	if !rows[1].Approved || rows[0].Approved || rows[2].Approved {
		t.Fatalf("approved flags wrong: %+v", rows)
	}
}
