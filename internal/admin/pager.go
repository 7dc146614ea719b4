package admin

// PageSize is fixed for every paginated list.
const PageSize = 10

// Page describes one page of a list.
type Page[T any] struct {
	Number int
	Rows   []T
	Count  int
}

// Skip is the offset for page n (1-based). Pages below 1 are treated as 1.
func Skip(n int) int {
	if n < 1 {
		n = 1
	}
	return (n - 1) * PageSize
}

// HasNext reports whether another page may follow. A full page is taken as
// a sign of more rows, matching how the backend paginates.
func (p Page[T]) HasNext() bool { return len(p.Rows) == PageSize }

func (p Page[T]) HasPrev() bool { return p.Number > 1 }

// TotalPages derives the page count from the total row count.
func (p Page[T]) TotalPages() int {
	if p.Count <= 0 {
		return 1
	}
	return (p.Count + PageSize - 1) / PageSize
}
