// Package stdx holds the few generic helpers the standard library doesn't ship.
package stdx

// Must0 panics if err is not nil.
func Must0(err error) {
	if err != nil {
		panic(err)
	}
}

// Must1 returns v, panicking if err is not nil. Use it for package-level
// construction where a failure is a programming error.
func Must1[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// Zero returns the zero value for a given type T.
func Zero[T any]() T {
	var zero T
	return zero
}
