package storereader

// Optional is a value that may be absent. An absent value in a log record
// is a tombstone.
type Optional[V any] struct {
	value V
	ok    bool
}

// Some wraps a present value.
func Some[V any](v V) Optional[V] { return Optional[V]{value: v, ok: true} }

// None returns an absent value.
func None[V any]() Optional[V] { return Optional[V]{} }

// Get returns the value and whether it is present.
func (o Optional[V]) Get() (V, bool) { return o.value, o.ok }

// Present reports whether a value is set.
func (o Optional[V]) Present() bool { return o.ok }

// OrElse returns the value, or def when absent.
func (o Optional[V]) OrElse(def V) V {
	if o.ok {
		return o.value
	}
	return def
}
