package wizard

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/visaops/internal/budget"
	"github.com/punchamoorthee/visaops/internal/domain"
	"github.com/punchamoorthee/visaops/internal/validation"
)

func coverDraft() *domain.VisaDraft {
	return &domain.VisaDraft{
		Type:          domain.VisaCover,
		DistributorID: "D-001",
		AccountTypes:  []string{"Modern Trade"},
		Amount:        decimal.NewFromInt(5000),
		Objective:     "Q2 display push",
		Approvers:     []string{"boss"},
	}
}

func regularDraft() *domain.VisaDraft {
	return &domain.VisaDraft{
		Type:          domain.VisaRegular,
		DistributorID: "D-001",
		AccountTypes:  []string{"Modern Trade"},
		Objective:     "Shelf rental",
		ParentCode:    "C2025-1",
		SKURows:       []domain.LineInput{{Label: "SKU-1", Amount: decimal.NewFromInt(300)}},
		FlatAmount:    "200",
		Approvers:     []string{"boss"},
	}
}

func fieldErrors(t *testing.T, err error) validation.FieldErrors {
	t.Helper()
	var fe validation.FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want FieldErrors", err)
	}
	return fe
}

func TestStepsSkipBudgetDetailForCover(t *testing.T) {
	next, err := Next(coverDraft(), StepCore)
	if err != nil {
		t.Fatal(err)
	}
	if next != StepAttachments {
		t.Fatalf("next = %d, want %d", next, StepAttachments)
	}
	if _, err := Next(coverDraft(), StepBudgetDetail); !errors.Is(err, ErrUnknownStep) {
		t.Fatalf("err = %v, want ErrUnknownStep", err)
	}
}

func TestRegularWalksAllSteps(t *testing.T) {
	d := regularDraft()
	step := StepCore
	var seen []int
	for step != Done {
		seen = append(seen, step)
		next, err := Next(d, step)
		if err != nil {
			t.Fatalf("step %d: %v", step, err)
		}
		step = next
	}
	if len(seen) != 4 {
		t.Fatalf("visited %v", seen)
	}
	if Prev(domain.VisaRegular, StepAttachments) != StepBudgetDetail {
		t.Fatal("Prev should return to budget detail")
	}
	if Prev(domain.VisaCover, StepAttachments) != StepCore {
		t.Fatal("Prev should skip budget detail for cover")
	}
}

func TestCoreRequiresFields(t *testing.T) {
	d := coverDraft()
	d.DistributorID = ""
	d.AccountTypes = nil
	d.Amount = decimal.Zero

	fe := fieldErrors(t, Validate(d, StepCore))
	for _, k := range []string{"distributor_id", "account_types", "amount"} {
		if _, ok := fe[k]; !ok {
			t.Errorf("missing error for %s: %v", k, fe)
		}
	}
	if _, ok := fe["parent_code"]; ok {
		t.Errorf("cover must not require parent_code: %v", fe)
	}
}

func TestRegularRequiresParentAndRows(t *testing.T) {
	d := regularDraft()
	d.ParentCode = ""
	d.SKURows = nil
	d.FlatAmount = ""

	fe := fieldErrors(t, Validate(d, StepReview))
	if fe["parent_code"] != "required" || fe["budget_rows"] != "required" {
		t.Fatalf("fe = %v", fe)
	}
}

func TestAmountsMustFitTwoDecimals(t *testing.T) {
	d := regularDraft()
	d.SKURows[0].Amount = decimal.RequireFromString("10.001")
	d.AccountRows = []domain.LineInput{{Label: "ACC-1", Amount: decimal.RequireFromString("0.999")}}
	d.FlatAmount = "0.005"

	fe := fieldErrors(t, Validate(d, StepBudgetDetail))
	for _, k := range []string{"sku_rows[0].amount", "account_rows[0].amount", "amountbadget"} {
		if fe[k] != "decimal2" {
			t.Errorf("%s = %q, want decimal2", k, fe[k])
		}
	}

	c := coverDraft()
	c.Amount = decimal.RequireFromString("1000.125")
	if fe := fieldErrors(t, Validate(c, StepCore)); fe["amount"] != "decimal2" {
		t.Errorf("amount: %v", fe)
	}
	c.Amount = decimal.RequireFromString("1000.10")
	if err := Validate(c, StepCore); err != nil {
		t.Errorf("two places must pass: %v", err)
	}
}

func TestAmountsBoundedByColumnRange(t *testing.T) {
	c := coverDraft()
	c.Amount = decimal.RequireFromString("1e17")
	if fe := fieldErrors(t, Validate(c, StepCore)); fe["amount"] != "lte" {
		t.Errorf("amount: %v", fe)
	}
	c.Amount = budget.MaxAmount
	if err := Validate(c, StepCore); err != nil {
		t.Errorf("max amount must pass: %v", err)
	}

	d := regularDraft()
	d.SKURows = []domain.LineInput{
		{Label: "SKU-1", Amount: budget.MaxAmount},
		{Label: "SKU-2", Amount: budget.MaxAmount},
	}
	d.FlatAmount = ""
	if fe := fieldErrors(t, Validate(d, StepBudgetDetail)); fe["budget_rows"] != "lte" {
		t.Errorf("budget_rows: %v", fe)
	}
}

func TestAttachmentsStep(t *testing.T) {
	d := coverDraft()
	d.Approvers = nil
	d.Attachments = []domain.AttachmentUpload{{Name: "", Data: "not base64!"}}

	fe := fieldErrors(t, Validate(d, StepAttachments))
	if fe["approvers"] != "min" {
		t.Errorf("approvers: %v", fe)
	}
	if fe["attachments[0].name"] != "required" || fe["attachments[0].data"] != "base64" {
		t.Errorf("attachments: %v", fe)
	}
}

func TestConsumption(t *testing.T) {
	d := regularDraft()
	d.AccountRows = []domain.LineInput{{Label: "ACC-9", Amount: decimal.NewFromInt(50)}}
	if got := Consumption(d); !got.Equal(decimal.NewFromInt(550)) {
		t.Fatalf("Consumption = %s, want 550", got)
	}
	if got := PreviewFor(d, decimal.NewFromInt(1000)).Remaining(); !got.Equal(decimal.NewFromInt(450)) {
		t.Fatalf("Remaining = %s, want 450", got)
	}
	if n := len(Lines(d)); n != 2 {
		t.Fatalf("Lines = %d, want 2", n)
	}
}
