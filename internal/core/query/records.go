package query

import "iter"

// Records is a lazy sequence of matching documents. Nothing is read from the
// store until it is ranged over; ranging drains and releases the cursor.
type Records[T any] = iter.Seq2[*T, error]

// Collect drains seq into a slice, stopping at the first error.
func Collect[T any](seq Records[T]) ([]*T, error) {
	out := make([]*T, 0)
	for v, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Slice adapts an in-memory slice to Records.
func Slice[T any](items []*T) Records[T] {
	return func(yield func(*T, error) bool) {
		for _, v := range items {
			if !yield(v, nil) {
				return
			}
		}
	}
}
