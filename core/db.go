package core

import "strings"

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// PageQuery holds the common list parameters: page, limit, search, sortBy, sortOrder.
type PageQuery struct {
	Page      int
	Limit     int
	Search    string
	SortBy    string
	SortOrder string
}

// Clean applies defaults and bounds.
func (q *PageQuery) Clean() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageLimit
	} else if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}
	q.Search = CleanString(q.Search)
	q.SortBy = CleanString(q.SortBy)
	if strings.EqualFold(q.SortOrder, "desc") {
		q.SortOrder = "DESC"
	} else {
		q.SortOrder = "ASC"
	}
}

func (q PageQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

// QueryAll pages through `query`, MaxPageLimit rows at a time, until it has returned every row.
func QueryAll[T any](pq PageQuery, query func(PageQuery) ([]T, int, error)) ([]T, error) {
	pq.Page, pq.Limit = 1, MaxPageLimit
	all := make([]T, 0)
	for {
		items, total, err := query(pq)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if len(items) == 0 || len(all) >= total {
			return all, nil
		}
		pq.Page++
	}
}

// Ordering maps SortBy onto one of the allowed fields ({param: column}); unknown fields fall back to `def`.
func (q PageQuery) Ordering(allowed map[string]string, def DBOrdering) DBOrdering {
	if col, ok := allowed[q.SortBy]; ok {
		return DBOrdering{Field: col, Ascending: q.SortOrder != "DESC"}
	}
	return def
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func NewPagination(q PageQuery, total int) Pagination {
	p := Pagination{Page: q.Page, Limit: q.Limit, Total: total}
	if total > 0 && q.Limit > 0 {
		p.TotalPages = (total + q.Limit - 1) / q.Limit
	}
	return p
}
