package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// persistedPrefix is the wire prefix of ids that exist in the references table.
const persistedPrefix = "sb_"

// RefID identifies a reference row. It is either Persisted (backed by a
// stored row) or a Draft that has never been saved.
type RefID struct {
	n int64
}

// Draft is the id of a reference that has not been stored yet.
var Draft = RefID{}

func Persisted(n int64) RefID {
	if n <= 0 {
		return Draft
	}
	return RefID{n: n}
}

// ParseRefID reads the wire form. Only "sb_<positive int>" is persisted;
// every other string is a Draft.
func ParseRefID(s string) RefID {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), persistedPrefix)
	if !ok {
		return Draft
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return Draft
	}
	return Persisted(n)
}

func (id RefID) IsPersisted() bool { return id.n > 0 }

// Int64 returns the row id and false for drafts.
func (id RefID) Int64() (int64, bool) { return id.n, id.n > 0 }

func (id RefID) String() string {
	if !id.IsPersisted() {
		return "draft"
	}
	return fmt.Sprintf("%s%d", persistedPrefix, id.n)
}

func (id RefID) MarshalJSON() ([]byte, error) {
	if !id.IsPersisted() {
		return []byte("null"), nil
	}
	return json.Marshal(id.String())
}

func (id *RefID) UnmarshalJSON(b []byte) error {
	var s string
	if string(b) == "null" {
		*id = Draft
		return nil
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*id = ParseRefID(s)
	return nil
}

type ReferenceType string

const (
	RefDepartment    ReferenceType = "Department"
	RefPosition      ReferenceType = "Position"
	RefPrincipal     ReferenceType = "Principal"
	RefAccountType   ReferenceType = "AccountType"
	RefGroupAccount  ReferenceType = "GroupAccount"
	RefCustomerType  ReferenceType = "CustomerType"
	RefCustomerGroup ReferenceType = "CustomerGroup"
	RefChannel       ReferenceType = "Channel"
)

var referenceTypes = []ReferenceType{
	RefDepartment, RefPosition, RefPrincipal, RefAccountType,
	RefGroupAccount, RefCustomerType, RefCustomerGroup, RefChannel,
}

// parentTypes holds the two-level drill-downs: child type -> parent type.
var parentTypes = map[ReferenceType]ReferenceType{
	RefGroupAccount:  RefAccountType,
	RefCustomerGroup: RefCustomerType,
}

func ParseReferenceType(s string) (ReferenceType, error) {
	for _, t := range referenceTypes {
		if strings.EqualFold(strings.TrimSpace(s), string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown reference type %q", s)
}

// ParentType returns the type a reference of type t must hang under, if any.
func (t ReferenceType) ParentType() (ReferenceType, bool) {
	p, ok := parentTypes[t]
	return p, ok
}

// Reference is a generic lookup row keyed by its type.
type Reference struct {
	ID          RefID         `json:"id"`
	Type        ReferenceType `json:"reference_type"`
	Name        string        `json:"name"`
	Code        string        `json:"code,omitempty"`
	Description string        `json:"description,omitempty"`
	ParentID    *RefID        `json:"parent_id,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// ReferenceInput is shared by create and update.
type ReferenceInput struct {
	Name        string `json:"name" validate:"required,max=200"`
	Code        string `json:"code" validate:"max=50"`
	Description string `json:"description"`
	ParentID    *RefID `json:"parent_id"`
}
