package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineInput is a SKU or account row as entered on the budget detail step.
type LineInput struct {
	Label  string          `json:"label" validate:"required"`
	Amount decimal.Decimal `json:"amount"`
}

// AttachmentUpload carries a base64 encoded file submitted with a visa.
type AttachmentUpload struct {
	Name        string `json:"name" validate:"required"`
	ContentType string `json:"content_type"`
	Data        string `json:"data" validate:"required,base64"`
}

// VisaDraft is the full payload collected by the multi-step form.
type VisaDraft struct {
	Type          VisaType           `json:"visa_type"`
	DistributorID string             `json:"distributor_id" validate:"required"`
	AccountTypes  []string           `json:"account_types" validate:"min=1,dive,required"`
	Amount        decimal.Decimal    `json:"amount"`
	Objective     string             `json:"objective" validate:"required"`
	PromoScheme   string             `json:"promo_scheme"`
	ParentCode    string             `json:"parent_code" validate:"required"`
	ActivityID    string             `json:"activity_id"`
	SKURows       []LineInput        `json:"sku_rows" validate:"dive"`
	AccountRows   []LineInput        `json:"account_rows" validate:"dive"`
	FlatAmount    string             `json:"amountbadget"`
	Attachments   []AttachmentUpload `json:"attachments" validate:"dive"`
	Approvers     []string           `json:"approvers" validate:"min=1,dive,required"`

	// ExpectedRemaining is the parent balance the client's preview was computed
	// from. When set, consumption fails if the balance has moved since.
	ExpectedRemaining *decimal.Decimal `json:"expected_remaining,omitempty"`
}

// SubmitResponse is returned (and replayed for idempotent retries) after a submission.
type SubmitResponse struct {
	Visa        Visa              `json:"visa"`
	Budget      *BudgetAllocation `json:"budget"`
	Lines       []VisaLine        `json:"lines"`
	Attachments []Attachment      `json:"attachments"`
	Approvers   []Approver        `json:"approvers"`
}

// ApprovalRow is a visa merged with its approval history.
type ApprovalRow struct {
	Visa
	Approved      bool       `json:"approved"`
	LastResponse  string     `json:"last_response,omitempty"`
	LastResponder string     `json:"last_responder,omitempty"`
	RespondedAt   *time.Time `json:"responded_at,omitempty"`
}

// ListFilter narrows visa listings. Page and Limit are one-based and positive.
type ListFilter struct {
	Type     VisaType
	Status   Status
	Search   string
	Approver string
	Page     int
	Limit    int
}

func (f ListFilter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// Page is a slice of results plus paging stats.
type Page[T any] struct {
	Data         []T    `json:"data"`
	Page         int    `json:"page"`
	Limit        int    `json:"limit"`
	TotalRecords int    `json:"total_records"`
	TotalPages   int    `json:"total_pages"`
	Message      string `json:"message,omitempty"`
}

// TypeStatusCount is one cell of the dashboard status matrix.
type TypeStatusCount struct {
	Type   VisaType `json:"visa_type"`
	Status Status   `json:"status"`
	Count  int      `json:"count"`
}

// MonthlyTotal is the requested amount per type for one calendar month.
type MonthlyTotal struct {
	Month  int             `json:"month"`
	Type   VisaType        `json:"visa_type"`
	Amount decimal.Decimal `json:"amount"`
	Count  int             `json:"count"`
}

type BudgetTotals struct {
	Granted   decimal.Decimal `json:"granted"`
	Remaining decimal.Decimal `json:"remaining"`
	Consumed  decimal.Decimal `json:"consumed"`
}

type Dashboard struct {
	Year     int               `json:"year"`
	Statuses []TypeStatusCount `json:"statuses"`
	Monthly  []MonthlyTotal    `json:"monthly"`
	Budget   BudgetTotals      `json:"budget"`
}

// BudgetViolation is an allocation whose balance breaks the ledger invariants.
type BudgetViolation struct {
	Code             string          `json:"code"`
	AmountBudget     decimal.Decimal `json:"amount_budget"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	EntriesTotal     decimal.Decimal `json:"entries_total"`
}

// VisaDetail is a visa with everything hanging off its code.
type VisaDetail struct {
	Visa        Visa              `json:"visa"`
	Approved    bool              `json:"approved"`
	Lines       []VisaLine        `json:"lines"`
	Budget      *BudgetAllocation `json:"budget,omitempty"`
	Approvers   []Approver        `json:"approvers"`
	History     []ApprovalHistory `json:"history"`
	Attachments []Attachment      `json:"attachments"`
}

// RespondRequest is an approver's or creator's answer to a pending visa.
type RespondRequest struct {
	Response string `json:"response" validate:"required,oneof=Approved Declined Cancelled approved declined cancelled"`
	Remarks  string `json:"remarks" validate:"max=1000"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}
