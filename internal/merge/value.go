package merge

import (
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the shape of a property value.
type Kind string

const (
	KindText     Kind = "text"
	KindNumber   Kind = "number"
	KindDate     Kind = "date"
	KindList     Kind = "list"
	KindRelation Kind = "relation"
	KindBool     Kind = "bool"
)

// Value is a destination property value in provider-neutral form. Lists hold
// multi-select option names; relations hold page ids.
type Value struct {
	Kind   Kind     `json:"kind"`
	Text   string   `json:"text,omitempty"`
	Number *float64 `json:"number,omitempty"`
	Items  []string `json:"items,omitempty"`
	Bool   bool     `json:"bool,omitempty"`
}

// Text returns a text value. Select options are text too.
func Text(s string) Value { return Value{Kind: KindText, Text: s} }

// Number returns a numeric value.
func Number(n float64) Value { return Value{Kind: KindNumber, Number: &n} }

// Date holds an ISO-8601 date or datetime.
func Date(s string) Value { return Value{Kind: KindDate, Text: s} }

// List returns a multi-select value holding items as option names.
func List(items ...string) Value { return Value{Kind: KindList, Items: items} }

// Relation returns a value linking to the given page ids.
func Relation(ids ...string) Value { return Value{Kind: KindRelation, Items: ids} }

// Bool returns a checkbox value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// IsEmpty reports whether the value carries no data. False booleans are
// empty.
func (v Value) IsEmpty() bool {
	switch v.Kind {
	case KindNumber:
		return v.Number == nil
	case KindList, KindRelation:
		for _, item := range v.Items {
			if strings.TrimSpace(item) != "" {
				return false
			}
		}
		return true
	case KindBool:
		return !v.Bool
	default:
		return strings.TrimSpace(v.Text) == ""
	}
}

// Equal compares values semantically. Lists and relations compare as sets;
// two empty values are equal regardless of kind.
func (v Value) Equal(other Value) bool {
	if v.IsEmpty() && other.IsEmpty() {
		return true
	}
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNumber:
		return v.Number != nil && other.Number != nil && *v.Number == *other.Number
	case KindList, KindRelation:
		return sameSet(v.Items, other.Items)
	case KindBool:
		return v.Bool == other.Bool
	case KindDate:
		return dateOnly(v.Text) == dateOnly(other.Text)
	default:
		return v.Text == other.Text
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		if v.Number == nil {
			return ""
		}
		return strconv.FormatFloat(*v.Number, 'f', -1, 64)
	case KindList, KindRelation:
		return strings.Join(v.Items, ", ")
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return v.Text
	}
}

func (v Value) clone() Value {
	out := v
	if v.Number != nil {
		n := *v.Number
		out.Number = &n
	}
	if v.Items != nil {
		out.Items = append([]string(nil), v.Items...)
	}
	return out
}

// Properties maps destination property ids to values.
type Properties map[string]Value

// Clone returns a deep copy.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v.clone()
	}
	return out
}

// Keys returns property ids in sorted order.
func (p Properties) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sameSet(a, b []string) bool {
	left := toSet(a)
	right := toSet(b)
	if len(left) != len(right) {
		return false
	}
	for k := range left {
		if _, ok := right[k]; !ok {
			return false
		}
	}
	return true
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			set[item] = struct{}{}
		}
	}
	return set
}

// dateOnly drops a time component so "2004-06-07" matches
// "2004-06-07T00:00:00.000+00:00".
func dateOnly(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 10 && s[10] == 'T' {
		return s[:10]
	}
	return s
}
