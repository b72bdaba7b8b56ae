package pointer

func Ref[T any](t T) *T {
	return &t
}

// SafeDeref returns *val, or the zero value when val is nil.
func SafeDeref[T any](val *T) T {
	if val == nil {
		return *new(T)
	}
	return *val
}
