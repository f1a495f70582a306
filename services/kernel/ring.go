package kernel

// ring is a bounded, insertion-ordered history. A limit <= 0 keeps every
// entry.
type ring[T any] struct {
	limit int
	buf   []T
	start int
}

func newRing[T any](limit int) *ring[T] {
	r := &ring[T]{limit: limit}
	if limit > 0 {
		r.buf = make([]T, 0, limit)
	}
	return r
}

func (r *ring[T]) push(v T) {
	if r.limit <= 0 || len(r.buf) < r.limit {
		r.buf = append(r.buf, v)
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % r.limit
}

func (r *ring[T]) len() int {
	return len(r.buf)
}

// items returns the entries oldest first.
func (r *ring[T]) items() []T {
	out := make([]T, 0, len(r.buf))
	out = append(out, r.buf[r.start:]...)
	out = append(out, r.buf[:r.start]...)
	return out
}

func (r *ring[T]) last() (T, bool) {
	var zero T
	if len(r.buf) == 0 {
		return zero, false
	}
	idx := len(r.buf) - 1
	if r.start > 0 {
		idx = r.start - 1
	}
	return r.buf[idx], true
}
