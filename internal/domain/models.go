package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// VisaType discriminates the three marketing visa variants.
type VisaType string

const (
	VisaCover     VisaType = "Cover"
	VisaRegular   VisaType = "Regular"
	VisaCorporate VisaType = "Corporate"
)

// VisaTypes lists every supported variant in display order.
var VisaTypes = []VisaType{VisaCover, VisaRegular, VisaCorporate}

// ParseVisaType accepts the variant name in any letter case.
func ParseVisaType(s string) (VisaType, error) {
	for _, t := range VisaTypes {
		if strings.EqualFold(strings.TrimSpace(s), string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown visa type %q", s)
}

// Prefix is the leading part of every code generated for the type.
func (t VisaType) Prefix() string {
	switch t {
	case VisaCover:
		return "C"
	case VisaRegular:
		return "R"
	case VisaCorporate:
		return "CP"
	}
	return ""
}

// AllocatesBudget reports whether a submission of this type opens its own budget.
// Regular visas consume from a parent Cover budget instead.
func (t VisaType) AllocatesBudget() bool {
	return t == VisaCover || t == VisaCorporate
}

type Status string

const (
	StatusPending   Status = "Pending"
	StatusApproved  Status = "Approved"
	StatusDeclined  Status = "Declined"
	StatusCancelled Status = "Cancelled"
)

func ParseStatus(s string) (Status, error) {
	for _, st := range []Status{StatusPending, StatusApproved, StatusDeclined, StatusCancelled} {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Response is an approver's (or creator's) answer recorded in the approval history.
type Response string

const (
	ResponseApproved  Response = "Approved"
	ResponseDeclined  Response = "Declined"
	ResponseCancelled Response = "Cancelled"
)

func ParseResponse(s string) (Response, error) {
	for _, r := range []Response{ResponseApproved, ResponseDeclined, ResponseCancelled} {
		if strings.EqualFold(strings.TrimSpace(s), string(r)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown response %q", s)
}

// Visa is a marketing budget request of any variant.
type Visa struct {
	Code          string          `json:"code"`
	Type          VisaType        `json:"visa_type"`
	DistributorID string          `json:"distributor_id"`
	AccountTypes  []string        `json:"account_types"`
	Amount        decimal.Decimal `json:"amount"`
	Objective     string          `json:"objective"`
	PromoScheme   string          `json:"promo_scheme,omitempty"`
	ParentCode    string          `json:"parent_code,omitempty"`
	ActivityID    string          `json:"activity_id,omitempty"`
	Status        Status          `json:"status"`
	CreatedBy     string          `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type LineKind string

const (
	LineSKU     LineKind = "sku"
	LineAccount LineKind = "account"
)

// VisaLine is one SKU billing row or per-account budget row of a Regular visa.
type VisaLine struct {
	Kind   LineKind        `json:"kind"`
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// BudgetAllocation is the running balance opened by a Cover or Corporate visa.
// RemainingBalance never exceeds AmountBudget and never drops below zero.
type BudgetAllocation struct {
	Code             string          `json:"code"`
	AmountBudget     decimal.Decimal `json:"amount_budget"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	CreatedBy        string          `json:"created_by"`
	Version          int64           `json:"version"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

const (
	EntryAllocate = "allocate"
	EntryConsume  = "consume"
	EntryRelease  = "release"
)

// BudgetEntry records one signed mutation of an allocation's remaining balance.
// The deltas of an allocation always sum to its remaining balance.
type BudgetEntry struct {
	ID         int64           `json:"id"`
	BudgetCode string          `json:"budget_code"`
	VisaCode   string          `json:"visa_code"`
	Delta      decimal.Decimal `json:"delta"`
	Reason     string          `json:"reason"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ApprovalHistory is an append-only response against a visa code.
type ApprovalHistory struct {
	ID        int64     `json:"id"`
	Code      string    `json:"pwp_code"`
	Response  string    `json:"response"`
	Approver  string    `json:"approver"`
	Remarks   string    `json:"remarks,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	ApproverPending  = "pending"
	ApproverApproved = "approved"
	ApproverDeclined = "declined"
)

// Approver is one position in a visa's approval route.
type Approver struct {
	Code     string `json:"code"`
	Step     int    `json:"step"`
	Approver string `json:"approver"`
	State    string `json:"state"`
}

// Attachment is file metadata for a visa. Data is only populated when the
// bytes are kept inline instead of in blob storage.
type Attachment struct {
	ID          string    `json:"id"`
	VisaCode    string    `json:"visa_code"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	BlobURL     string    `json:"blob_url,omitempty"`
	Data        []byte    `json:"-"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// Lookup is a row of the read-only distributor, account and activity tables.
type Lookup struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	PasswordHash string `json:"-"`
}

// Session is the authenticated caller, decoded from a bearer token.
type Session struct {
	TokenID   string    `json:"token_id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IdempotencyRecord stores the response state for exact-once submission.
type IdempotencyRecord struct {
	Key            string
	RequestHash    string
	Status         string
	ResponseBody   json.RawMessage
	ResponseStatus int
}
