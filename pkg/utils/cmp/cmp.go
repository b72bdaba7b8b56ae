package cmp

// SliceEq reports whether a and b have the same elements in the same order.
func SliceEq[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for nth := range a {
		if a[nth] != b[nth] {
			return false
		}
	}
	return true
}

// SliceEqWith is SliceEq with a custom element predicate.
func SliceEqWith[T any, U any](a []T, b []U, pred func(T, U) bool) bool {
	if len(a) != len(b) {
		return false
	}
	for nth := range a {
		if !pred(a[nth], b[nth]) {
			return false
		}
	}
	return true
}

// SliceContentEq reports whether a and b hold the same multiset of elements,
// ignoring order.
func SliceContentEq[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	rest := map[T]int{}
	for _, v := range a {
		rest[v] += 1
	}
	for _, v := range b {
		rest[v] -= 1
		if rest[v] < 0 {
			return false
		}
	}
	return true
}

// SliceContentEqWith is SliceContentEq with a custom element predicate.
//
// It is O(n^2). Use for tests and small slices.
func SliceContentEqWith[T any, U any](a []T, b []U, pred func(T, U) bool) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
next:
	for _, va := range a {
		for nth, vb := range b {
			if used[nth] {
				continue
			}
			if pred(va, vb) {
				used[nth] = true
				continue next
			}
		}
		return false
	}
	return true
}

// MapEq reports whether a and b have the same key-value pairs.
func MapEq[K comparable, V comparable](a, b map[K]V) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || va != vb {
			return false
		}
	}
	return true
}

// MapEqWith is MapEq with a custom value predicate.
func MapEqWith[K comparable, V any, U any](a map[K]V, b map[K]U, pred func(V, U) bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || !pred(va, vb) {
			return false
		}
	}
	return true
}
