package slices

// Map applies mapper to each element of sli.
func Map[T any, R any](sli []T, mapper func(T) R) []R {
	ret := make([]R, len(sli))
	for nth, v := range sli {
		ret[nth] = mapper(v)
	}
	return ret
}

// Filter returns elements of sli satisfying pred, keeping order.
func Filter[T any](sli []T, pred func(T) bool) []T {
	ret := []T{}
	for _, v := range sli {
		if pred(v) {
			ret = append(ret, v)
		}
	}
	return ret
}

// First returns the first element satisfying pred.
func First[T any](sli []T, pred func(T) bool) (T, bool) {
	for _, v := range sli {
		if pred(v) {
			return v, true
		}
	}
	return *new(T), false
}

// KeysOf collects keys of m. Ordering is unstable.
func KeysOf[K comparable, V any](m map[K]V) []K {
	ret := make([]K, 0, len(m))
	for k := range m {
		ret = append(ret, k)
	}
	return ret
}

// ToMap converts sli to a map keyed by getkey.
//
// On key collision, the later element wins.
func ToMap[K comparable, V any](sli []V, getkey func(V) K) map[K]V {
	ret := make(map[K]V, len(sli))
	for _, v := range sli {
		ret[getkey(v)] = v
	}
	return ret
}
