// Package collection provides small generic helpers for filtering, ordering, and
// paging in-memory slices. The memory-backed store and the performance analytics
// use these so that list endpoints behave identically whether rows come from
// Postgres or from fixtures.
package collection

import "sort"

// Filter returns the elements of items for which keep returns true. The input
// slice is never modified and relative order is preserved.
func Filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// SortBy returns a sorted copy of items ordered by less. The sort is stable, so
// elements that compare equal keep their input order and repeated calls with
// the same input yield the same output.
func SortBy[T any](items []T, less func(a, b T) bool) []T {
	out := make([]T, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// Paginate returns the page of items for a 1-based page number and the total
// item count. Pages past the end yield an empty slice, never an error. A
// non-positive page or pageSize is treated as 1.
func Paginate[T any](items []T, page, pageSize int) ([]T, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}

	total := len(items)
	start := (page - 1) * pageSize
	if start >= total {
		return []T{}, total
	}

	end := start + pageSize
	if end > total {
		end = total
	}
	return items[start:end], total
}
