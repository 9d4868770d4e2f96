package shared

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pagination is a 1-indexed page request.
type Pagination struct {
	Page     int
	PageSize int
}

// Normalize clamps the request to valid bounds.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Offset returns the number of rows to skip.
func (p Pagination) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.PageSize
}
