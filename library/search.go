package library

import (
	"fmt"
	"math"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// sortColumns maps the accepted sort keys to indexed columns. Text columns
// sort by their folded key so ordering ignores case.
var sortColumns = map[string]string{
	"book_id": "book_id",
	"title":   "title_key",
	"author":  "author_key",
}

// BookQuery filters, sorts and paginates the catalogue. Zero values mean
// "no filter" / defaults.
type BookQuery struct {
	Q         string // matches title, author or isbn
	Title     string
	Author    string
	ISBN      string
	Available *bool
	SortBy    string // book_id | title | author
	Order     string // asc | desc
	Page      int
	Limit     int
}

// Pagination describes where a result page sits in the full result set.
type Pagination struct {
	CurrentPage int  `json:"current_page"`
	PageSize    int  `json:"page_size"`
	TotalItems  int  `json:"total_items"`
	TotalPages  int  `json:"total_pages"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

// SearchResult is one page of books plus its pagination metadata.
type SearchResult struct {
	Books      []Book     `json:"books"`
	Pagination Pagination `json:"pagination"`
}

// normalize fills defaults and rejects out-of-range values.
func (q BookQuery) normalize() (BookQuery, error) {
	q.SortBy = strings.ToLower(strings.TrimSpace(q.SortBy))
	q.Order = strings.ToLower(strings.TrimSpace(q.Order))
	if q.SortBy == "" {
		q.SortBy = "book_id"
	}
	if _, ok := sortColumns[q.SortBy]; !ok {
		return q, InvalidInputf("invalid sort_by: %s, must be one of book_id, title, author", q.SortBy)
	}
	if q.Order == "" {
		q.Order = "asc"
	}
	if q.Order != "asc" && q.Order != "desc" {
		return q, InvalidInputf("invalid order: %s, must be asc or desc", q.Order)
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Page < 1 {
		return q, InvalidInputf("invalid page: %d, must be at least 1", q.Page)
	}
	if q.Limit == 0 {
		q.Limit = DefaultPageSize
	}
	if q.Limit < 1 || q.Limit > MaxPageSize {
		return q, InvalidInputf("invalid limit: %d, must be between 1 and %d", q.Limit, MaxPageSize)
	}
	// the row offset (page-1)*limit must fit an int
	if q.Page-1 > math.MaxInt/q.Limit {
		return q, InvalidInputf("invalid page: %d, too large for limit %d", q.Page, q.Limit)
	}
	return q, nil
}

func (q BookQuery) conditions() []exp.Expression {
	var conds []exp.Expression
	if key := foldKey(q.Q); key != "" {
		conds = append(conds, goqu.Or(
			goqu.L("instr(title_key, ?) > 0", key),
			goqu.L("instr(author_key, ?) > 0", key),
			goqu.L("instr(isbn_key, ?) > 0", key),
		))
	}
	fields := []struct{ column, value string }{
		{"title_key", q.Title},
		{"author_key", q.Author},
		{"isbn_key", q.ISBN},
	}
	for _, f := range fields {
		if key := foldKey(f.value); key != "" {
			conds = append(conds, goqu.L("instr("+f.column+", ?) > 0", key))
		}
	}
	if q.Available != nil {
		conds = append(conds, goqu.L("is_available = ?", *q.Available))
	}
	return conds
}

// SearchBooks runs a catalogue query and returns the requested page.
func (s EntityStore) SearchBooks(db sqlx.Queryer, query BookQuery) (SearchResult, error) {
	query, err := query.normalize()
	if err != nil {
		return SearchResult{}, err
	}
	conds := query.conditions()

	countSQL, countArgs, err := s.dialect.From("books").
		Select(goqu.COUNT(goqu.Star())).
		Where(conds...).
		Prepared(true).ToSQL()
	if err != nil {
		return SearchResult{}, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := sqlx.Get(db, &total, countSQL, countArgs...); err != nil {
		return SearchResult{}, fmt.Errorf("count books: %w", err)
	}

	order := goqu.I(sortColumns[query.SortBy]).Asc()
	if query.Order == "desc" {
		order = goqu.I(sortColumns[query.SortBy]).Desc()
	}
	pageSQL, pageArgs, err := s.dialect.From("books").
		Select("book_id", "title", "author", "isbn", "is_available").
		Where(conds...).
		Order(order, goqu.I("book_id").Asc()).
		Limit(uint(query.Limit)).
		Offset(uint((query.Page - 1) * query.Limit)).
		Prepared(true).ToSQL()
	if err != nil {
		return SearchResult{}, fmt.Errorf("build search query: %w", err)
	}
	books := []Book{}
	if err := sqlx.Select(db, &books, pageSQL, pageArgs...); err != nil {
		return SearchResult{}, fmt.Errorf("search books: %w", err)
	}

	totalPages := (total + query.Limit - 1) / query.Limit
	return SearchResult{
		Books: books,
		Pagination: Pagination{
			CurrentPage: query.Page,
			PageSize:    query.Limit,
			TotalItems:  total,
			TotalPages:  totalPages,
			HasNext:     query.Page < totalPages,
			HasPrevious: query.Page > 1,
		},
	}, nil
}
