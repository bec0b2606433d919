// Package optional implements a generic maybe-value. It is used for values
// which have no natural "unset" sentinel, such as queue family indices where
// zero is a perfectly valid index.
package optional

// Optional holds a value of type T which may not have been set yet.
type Optional[T any] struct {
	value    T
	hasValue bool
}

// Set stores a value.
func (o *Optional[T]) Set(value T) {
	o.value = value
	o.hasValue = true
}

// Get returns the stored value. It panics when no value has been set. Callers
// are expected to check HasValue first.
func (o *Optional[T]) Get() T {
	if !o.hasValue {
		panic("optional: Get called without a value")
	}
	return o.value
}

// HasValue returns true if a value has been set.
func (o *Optional[T]) HasValue() bool {
	return o.hasValue
}
