package repository

// ListFilter narrows list queries. Page is 1-based.
type ListFilter struct {
	Status string
	Search string
	Page   int
	Limit  int
}

func (f ListFilter) offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

func (f ListFilter) limit() int {
	if f.Limit <= 0 {
		return 10
	}
	return f.Limit
}
