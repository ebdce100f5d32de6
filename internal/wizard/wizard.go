// Package wizard gates the multi-step visa form: which steps apply to a visa
// type and which fields each step requires before moving on.
package wizard

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/visaops/internal/budget"
	"github.com/punchamoorthee/visaops/internal/domain"
	"github.com/punchamoorthee/visaops/internal/validation"
)

const (
	StepCore         = 1
	StepBudgetDetail = 2
	StepAttachments  = 3
	StepReview       = 4
	Done             = 5
)

var ErrUnknownStep = errors.New("step does not apply to this visa type")

// Steps lists the steps a visa type walks through. The budget detail step
// only exists for Regular visas.
func Steps(t domain.VisaType) []int {
	if t == domain.VisaRegular {
		return []int{StepCore, StepBudgetDetail, StepAttachments, StepReview}
	}
	return []int{StepCore, StepAttachments, StepReview}
}

func applies(t domain.VisaType, step int) bool {
	for _, s := range Steps(t) {
		if s == step {
			return true
		}
	}
	return false
}

// Next validates the fields owned by current and returns the following step,
// or Done after review.
func Next(d *domain.VisaDraft, current int) (int, error) {
	if !applies(d.Type, current) {
		return current, fmt.Errorf("%w: %d", ErrUnknownStep, current)
	}
	if err := Validate(d, current); err != nil {
		return current, err
	}
	steps := Steps(d.Type)
	for i, s := range steps {
		if s == current && i+1 < len(steps) {
			return steps[i+1], nil
		}
	}
	return Done, nil
}

// Prev moves back one step without validation.
func Prev(t domain.VisaType, current int) int {
	steps := Steps(t)
	for i, s := range steps {
		if s == current && i > 0 {
			return steps[i-1]
		}
	}
	return StepCore
}

// Validate checks the fields required by step. Review re-checks every step.
func Validate(d *domain.VisaDraft, step int) error {
	fe := validation.FieldErrors{}
	switch step {
	case StepCore:
		fe = validateCore(d)
	case StepBudgetDetail:
		fe = validateBudgetDetail(d)
	case StepAttachments:
		fe = validateAttachments(d)
	case StepReview:
		for _, s := range Steps(d.Type) {
			if s == StepReview {
				continue
			}
			var sub validation.FieldErrors
			if errors.As(Validate(d, s), &sub) {
				fe.Merge("", sub)
			}
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnknownStep, step)
	}
	return fe.Err()
}

func validateCore(d *domain.VisaDraft) validation.FieldErrors {
	fields := []string{"DistributorID", "AccountTypes", "Objective"}
	if d.Type == domain.VisaRegular {
		fields = append(fields, "ParentCode")
	}
	fe := validation.Partial(d, fields...)
	if d.Type.Prefix() == "" {
		fe.Add("visa_type", "oneof")
	}
	if d.Type.AllocatesBudget() && !d.Amount.IsPositive() {
		fe.Add("amount", "gt")
	}
	checkAmount(fe, "amount", d.Amount)
	return fe
}

// checkAmount flags values the NUMERIC(18,2) columns would round or reject.
func checkAmount(fe validation.FieldErrors, field string, a decimal.Decimal) {
	switch {
	case !a.Equal(a.Truncate(budget.Scale)):
		fe.Add(field, "decimal2")
	case a.Abs().GreaterThan(budget.MaxAmount):
		fe.Add(field, "lte")
	}
}

func validateBudgetDetail(d *domain.VisaDraft) validation.FieldErrors {
	fe := validation.FieldErrors{}
	for i, row := range d.SKURows {
		fe.Merge(validation.Indexed("sku_rows", i), validation.Struct(row))
		if row.Amount.IsNegative() {
			fe.Add(validation.Indexed("sku_rows", i)+"amount", "gte")
		}
		checkAmount(fe, validation.Indexed("sku_rows", i)+"amount", row.Amount)
	}
	for i, row := range d.AccountRows {
		fe.Merge(validation.Indexed("account_rows", i), validation.Struct(row))
		if row.Amount.IsNegative() {
			fe.Add(validation.Indexed("account_rows", i)+"amount", "gte")
		}
		checkAmount(fe, validation.Indexed("account_rows", i)+"amount", row.Amount)
	}
	flat := budget.ParseAmount(d.FlatAmount)
	if flat.IsNegative() {
		fe.Add("amountbadget", "gte")
	}
	checkAmount(fe, "amountbadget", flat)
	total := Consumption(d)
	if !total.IsPositive() {
		fe.Add("budget_rows", "required")
	} else if total.GreaterThan(budget.MaxAmount) {
		fe.Add("budget_rows", "lte")
	}
	return fe
}

func validateAttachments(d *domain.VisaDraft) validation.FieldErrors {
	fe := validation.Partial(d, "Approvers")
	for i, a := range d.Attachments {
		fe.Merge(validation.Indexed("attachments", i), validation.Struct(a))
	}
	return fe
}
