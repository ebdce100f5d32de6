package approval

import (
	"errors"
	"testing"

	"github.com/punchamoorthee/visaops/internal/domain"
)

func pendingVisa(typ domain.VisaType) domain.Visa {
	return domain.Visa{Code: "R2025-1", Type: typ, Status: domain.StatusPending, CreatedBy: "maker"}
}

func TestBuildRouteDropsBlanksAndRepeats(t *testing.T) {
	route := BuildRoute("C2025-1", []string{"boss", " ", "Boss", "finance"})
	if len(route) != 2 {
		t.Fatalf("route = %+v", route)
	}
	if route[1].Approver != "finance" || route[1].Step != 2 || route[1].State != domain.ApproverPending {
		t.Fatalf("second step = %+v", route[1])
	}
}

func TestDecide(t *testing.T) {
	route := BuildRoute("R2025-1", []string{"boss", "finance"})
	lastOnly := []domain.Approver{
		{Step: 1, Approver: "boss", State: domain.ApproverApproved},
		{Step: 2, Approver: "finance", State: domain.ApproverPending},
	}

	tests := []struct {
		name      string
		visa      domain.Visa
		route     []domain.Approver
		responder string
		resp      domain.Response
		want      Decision
		err       error
	}{
		{"first approval advances", pendingVisa(domain.VisaRegular), route, "boss", domain.ResponseApproved,
			Decision{Status: domain.StatusPending, Step: 1, StepState: domain.ApproverApproved}, nil},
		{"last approval completes", pendingVisa(domain.VisaRegular), lastOnly, "FINANCE", domain.ResponseApproved,
			Decision{Status: domain.StatusApproved, Step: 2, StepState: domain.ApproverApproved}, nil},
		{"decline releases regular", pendingVisa(domain.VisaRegular), route, "boss", domain.ResponseDeclined,
			Decision{Status: domain.StatusDeclined, Step: 1, StepState: domain.ApproverDeclined, ReleaseBudget: true}, nil},
		{"decline cover keeps budget", pendingVisa(domain.VisaCover), route, "boss", domain.ResponseDeclined,
			Decision{Status: domain.StatusDeclined, Step: 1, StepState: domain.ApproverDeclined}, nil},
		{"wrong approver", pendingVisa(domain.VisaRegular), route, "finance", domain.ResponseApproved, Decision{}, ErrNotApprover},
		{"creator cancels", pendingVisa(domain.VisaRegular), route, "maker", domain.ResponseCancelled,
			Decision{Status: domain.StatusCancelled, ReleaseBudget: true}, nil},
		{"other user cancels", pendingVisa(domain.VisaRegular), route, "boss", domain.ResponseCancelled, Decision{}, ErrNotCreator},
		{"empty route", pendingVisa(domain.VisaCover), nil, "boss", domain.ResponseApproved, Decision{}, ErrEmptyRoute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decide(tt.visa, tt.route, tt.responder, tt.resp)
			if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if got != tt.want {
				t.Fatalf("Decide = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecideRejectsClosedVisa(t *testing.T) {
	v := pendingVisa(domain.VisaCover)
	v.Status = domain.StatusApproved
	if _, err := Decide(v, BuildRoute(v.Code, []string{"boss"}), "boss", domain.ResponseApproved); !errors.Is(err, ErrNotPending) {
		t.Fatalf("err = %v, want ErrNotPending", err)
	}
}
