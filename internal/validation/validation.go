// Package validation wraps go-playground/validator and reports failures as
// field -> rule maps keyed by JSON field names.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// FieldErrors maps a JSON field path to the rule it failed.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + fe[k]
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Add records a failure unless the field already has one.
func (fe FieldErrors) Add(field, rule string) {
	if _, ok := fe[field]; !ok {
		fe[field] = rule
	}
}

// Merge copies other into fe, prefixing keys.
func (fe FieldErrors) Merge(prefix string, other FieldErrors) {
	for k, v := range other {
		fe.Add(prefix+k, v)
	}
}

// Err returns fe as an error, or nil when empty.
func (fe FieldErrors) Err() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

// Struct validates every tagged field of s.
func Struct(s any) FieldErrors {
	return collect(validate.Struct(s))
}

// Partial validates only the named Go fields of s.
func Partial(s any, fields ...string) FieldErrors {
	return collect(validate.StructPartial(s, fields...))
}

// Indexed prefixes row-level failures with "name[i].".
func Indexed(name string, i int) string {
	return fmt.Sprintf("%s[%d].", name, i)
}

func collect(err error) FieldErrors {
	fe := FieldErrors{}
	if err == nil {
		return fe
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		fe.Add("_", err.Error())
		return fe
	}
	for _, ve := range ves {
		fe.Add(fieldPath(ve), ve.Tag())
	}
	return fe
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(ve validator.FieldError) string {
	ns := ve.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ve.Field()
}
