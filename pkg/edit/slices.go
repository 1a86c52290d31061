package edit

import (
	"slices"

	"github.com/aretw0/strata/pkg/domain"
)

// The helpers below never write into the backing array of their input.

func with[T any](s []T, v T) []T {
	return append(slices.Clone(s), v)
}

func without[T any](s []T, drop func(T) bool) []T {
	return slices.DeleteFunc(slices.Clone(s), drop)
}

// upsert replaces the first entry matching match with v, or appends v.
func upsert[T any](s []T, match func(T) bool, v T) []T {
	out := slices.Clone(s)
	if i := slices.IndexFunc(out, match); i >= 0 {
		out[i] = v
		return out
	}
	return append(out, v)
}

func find[T any](s []T, match func(T) bool) (T, bool) {
	if i := slices.IndexFunc(s, match); i >= 0 {
		return s[i], true
	}
	var zero T
	return zero, false
}

func elementID(id string) func(domain.Element) bool {
	return func(e domain.Element) bool { return e.ID == id }
}

func linkTo(id string) func(domain.Link) bool {
	return func(l domain.Link) bool { return l.To == id }
}

func propertyKey(key domain.PropertyKey) func(domain.Property) bool {
	return func(p domain.Property) bool { return p.Key() == key }
}
