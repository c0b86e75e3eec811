package filter

import (
	"sort"
	"strings"

	"sondajes/domain/table"
)

// NullOption is the synthetic choice offered for null-aware filters.
const NullOption = "(vacío)"

// Kind names the filter variant
type Kind string

const (
	KindExact              Kind = "exact"
	KindMembership         Kind = "membership"
	KindMembershipWithNull Kind = "membership_with_null"
)

// Spec is the selection state of one filterable column. Specs are value
// objects built fresh from user input on every pipeline run.
type Spec struct {
	Kind        Kind     `json:"kind"`
	Values      []string `json:"values,omitempty"`
	IncludeNull bool     `json:"include_null,omitempty"`
}

// Filters maps column names to their selection state.
type Filters map[string]Spec

// Exact matches rows whose trimmed stringified value equals value.
// An empty value selects everything.
func Exact(value string) Spec {
	return Spec{Kind: KindExact, Values: []string{strings.TrimSpace(value)}}
}

// Membership matches rows whose stringified value is one of values.
// No values selects everything.
func Membership(values ...string) Spec {
	return Spec{Kind: KindMembership, Values: values}
}

// MembershipWithNull matches rows in values, plus null rows when includeNull.
func MembershipWithNull(values []string, includeNull bool) Spec {
	return Spec{Kind: KindMembershipWithNull, Values: values, IncludeNull: includeNull}
}

// FromSelection builds a null-aware spec from a raw widget selection, where
// NullOption stands for "accept empty cells".
func FromSelection(selected []string) Spec {
	var values []string
	includeNull := false
	for _, s := range selected {
		if s == NullOption {
			includeNull = true
			continue
		}
		values = append(values, s)
	}
	return MembershipWithNull(values, includeNull)
}

// IsPassThrough reports whether the spec keeps every row.
func (s Spec) IsPassThrough() bool {
	switch s.Kind {
	case KindExact:
		return len(s.Values) == 0 || strings.TrimSpace(s.Values[0]) == ""
	case KindMembershipWithNull:
		return len(s.Values) == 0 && !s.IncludeNull
	default:
		return len(s.Values) == 0
	}
}

// Predicate compiles the spec into a row test over a single value.
func (s Spec) Predicate() func(table.Value) bool {
	if s.IsPassThrough() {
		return func(table.Value) bool { return true }
	}
	switch s.Kind {
	case KindExact:
		want := strings.TrimSpace(s.Values[0])
		return func(v table.Value) bool {
			return strings.TrimSpace(v.String()) == want
		}
	case KindMembershipWithNull:
		accepted := toSet(s.Values)
		includeNull := s.IncludeNull
		return func(v table.Value) bool {
			if v.IsMissing() {
				return includeNull
			}
			_, ok := accepted[v.String()]
			return ok
		}
	default:
		accepted := toSet(s.Values)
		return func(v table.Value) bool {
			_, ok := accepted[v.String()]
			return ok
		}
	}
}

// Columns returns the filtered column names, sorted.
func (f Filters) Columns() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
