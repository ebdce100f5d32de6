package approval

import (
	"errors"
	"strings"

	"github.com/punchamoorthee/visaops/internal/domain"
)

var (
	ErrNotPending  = errors.New("visa is no longer pending")
	ErrNotApprover = errors.New("caller is not the current approver")
	ErrNotCreator  = errors.New("only the creator can cancel a visa")
	ErrEmptyRoute  = errors.New("approval route is empty")
)

// BuildRoute numbers approvers from step 1, dropping blanks and repeats.
func BuildRoute(code string, approvers []string) []domain.Approver {
	seen := make(map[string]bool, len(approvers))
	route := make([]domain.Approver, 0, len(approvers))
	for _, a := range approvers {
		a = strings.TrimSpace(a)
		key := strings.ToLower(a)
		if a == "" || seen[key] {
			continue
		}
		seen[key] = true
		route = append(route, domain.Approver{
			Code:     code,
			Step:     len(route) + 1,
			Approver: a,
			State:    domain.ApproverPending,
		})
	}
	return route
}

// Current returns the first approver still pending.
func Current(route []domain.Approver) (domain.Approver, bool) {
	for _, a := range route {
		if a.State == domain.ApproverPending {
			return a, true
		}
	}
	return domain.Approver{}, false
}

// Decision is the outcome of applying a response to a visa.
type Decision struct {
	Status        domain.Status
	Step          int // route step to mark, 0 for none
	StepState     string
	ReleaseBudget bool
}

// Decide applies responder's response to v given its route.
func Decide(v domain.Visa, route []domain.Approver, responder string, resp domain.Response) (Decision, error) {
	if v.Status != domain.StatusPending {
		return Decision{}, ErrNotPending
	}

	if resp == domain.ResponseCancelled {
		if !strings.EqualFold(v.CreatedBy, responder) {
			return Decision{}, ErrNotCreator
		}
		return Decision{Status: domain.StatusCancelled, ReleaseBudget: v.Type == domain.VisaRegular}, nil
	}

	if len(route) == 0 {
		return Decision{}, ErrEmptyRoute
	}
	cur, ok := Current(route)
	if !ok {
		return Decision{}, ErrNotPending
	}
	if !strings.EqualFold(cur.Approver, responder) {
		return Decision{}, ErrNotApprover
	}

	if resp == domain.ResponseDeclined {
		return Decision{
			Status:        domain.StatusDeclined,
			Step:          cur.Step,
			StepState:     domain.ApproverDeclined,
			ReleaseBudget: v.Type == domain.VisaRegular,
		}, nil
	}

	status := domain.StatusApproved
	for _, a := range route {
		if a.Step > cur.Step && a.State == domain.ApproverPending {
			status = domain.StatusPending
			break
		}
	}
	return Decision{Status: status, Step: cur.Step, StepState: domain.ApproverApproved}, nil
}
