// Package selectors models label and field selector requirements and their
// query-string wire encoding. Requirements keep caller order; duplicates on
// one key are forwarded verbatim rather than deduplicated.
package selectors

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation"
)

// Operator is the comparison a label requirement applies.
type Operator string

const (
	OpEquals       Operator = "="
	OpNotEquals    Operator = "!="
	OpIn           Operator = "in"
	OpNotIn        Operator = "notin"
	OpExists       Operator = "exists"
	OpDoesNotExist Operator = "!"
)

// Requirement is one label selector term. Multiple requirements on a request
// combine by logical AND.
type Requirement struct {
	Key      string
	Operator Operator
	Values   []string
}

func Eq(key, value string) Requirement {
	return Requirement{Key: key, Operator: OpEquals, Values: []string{value}}
}

func Neq(key, value string) Requirement {
	return Requirement{Key: key, Operator: OpNotEquals, Values: []string{value}}
}

func In(key string, values ...string) Requirement {
	return Requirement{Key: key, Operator: OpIn, Values: values}
}

func NotIn(key string, values ...string) Requirement {
	return Requirement{Key: key, Operator: OpNotIn, Values: values}
}

func Exists(key string) Requirement {
	return Requirement{Key: key, Operator: OpExists}
}

func DoesNotExist(key string) Requirement {
	return Requirement{Key: key, Operator: OpDoesNotExist}
}

// validate checks the requirement before it is put on the wire. Values must
// be valid label values; set operators need at least one value.
func (r Requirement) validate() error {
	if r.Key == "" {
		return fmt.Errorf("label requirement: key must not be empty")
	}
	switch r.Operator {
	case OpEquals, OpNotEquals:
		if len(r.Values) != 1 {
			return fmt.Errorf("label requirement %s: operator %q takes exactly one value", r.Key, r.Operator)
		}
	case OpIn, OpNotIn:
		if len(r.Values) == 0 {
			return fmt.Errorf("label requirement %s: operator %q requires at least one value", r.Key, r.Operator)
		}
	case OpExists, OpDoesNotExist:
		if len(r.Values) != 0 {
			return fmt.Errorf("label requirement %s: operator %q takes no values", r.Key, r.Operator)
		}
	default:
		return fmt.Errorf("label requirement %s: unknown operator %q", r.Key, r.Operator)
	}
	for _, v := range r.Values {
		if errs := validation.IsValidLabelValue(v); len(errs) != 0 {
			return fmt.Errorf("label requirement %s: invalid value %q: %s", r.Key, v, strings.Join(errs, "; "))
		}
	}
	return nil
}

// Encode serializes requirements to the labelSelector wire grammar:
// "k=v,k!=v,k in (a,b),k notin (a,b),k,!k". An empty requirement list
// encodes to the empty string, which callers must translate to "no query
// parameter at all".
func Encode(reqs []Requirement) (string, error) {
	if len(reqs) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(reqs))
	for _, r := range reqs {
		if err := r.validate(); err != nil {
			return "", err
		}
		switch r.Operator {
		case OpEquals:
			parts = append(parts, r.Key+"="+r.Values[0])
		case OpNotEquals:
			parts = append(parts, r.Key+"!="+r.Values[0])
		case OpIn:
			parts = append(parts, fmt.Sprintf("%s in (%s)", r.Key, strings.Join(r.Values, ",")))
		case OpNotIn:
			parts = append(parts, fmt.Sprintf("%s notin (%s)", r.Key, strings.Join(r.Values, ",")))
		case OpExists:
			parts = append(parts, r.Key)
		case OpDoesNotExist:
			parts = append(parts, "!"+r.Key)
		}
	}
	return strings.Join(parts, ","), nil
}
