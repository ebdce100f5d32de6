package wizard

import (
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/visaops/internal/budget"
	"github.com/punchamoorthee/visaops/internal/domain"
)

// Consumption is what a Regular draft takes from its parent budget.
func Consumption(d *domain.VisaDraft) decimal.Decimal {
	return PreviewFor(d, decimal.Zero).Allocated()
}

// PreviewFor builds the remaining-balance preview of d against selected.
func PreviewFor(d *domain.VisaDraft, selected decimal.Decimal) budget.Preview {
	p := budget.Preview{Selected: selected, Flat: d.FlatAmount}
	for _, r := range d.SKURows {
		p.SKURows = append(p.SKURows, r.Amount)
	}
	for _, r := range d.AccountRows {
		p.AccountRows = append(p.AccountRows, r.Amount)
	}
	return p
}

// Lines converts the draft rows into stored visa lines.
func Lines(d *domain.VisaDraft) []domain.VisaLine {
	lines := make([]domain.VisaLine, 0, len(d.SKURows)+len(d.AccountRows))
	for _, r := range d.SKURows {
		lines = append(lines, domain.VisaLine{Kind: domain.LineSKU, Label: r.Label, Amount: r.Amount})
	}
	for _, r := range d.AccountRows {
		lines = append(lines, domain.VisaLine{Kind: domain.LineAccount, Label: r.Label, Amount: r.Amount})
	}
	return lines
}
