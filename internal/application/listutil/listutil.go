// Package listutil parses paging and filter parameters for list views.
package listutil

import (
	"net/url"
	"slices"
	"strconv"
)

// DefaultPerPage is the page size when none (or an unsupported one) is requested.
const DefaultPerPage = 50

// PerPageOptions are the page sizes a list view offers.
var PerPageOptions = []int{25, 50, 100, 200}

// PageParams is the requested page. Page is 1-indexed.
type PageParams struct {
	Page    int
	PerPage int
}

// Filters maps a recognised query key to its non-empty value.
type Filters map[string]string

// ParsePageParams reads page and per_page.
// PRE: none
// POST: Page >= 1 and PerPage is one of PerPageOptions
func ParsePageParams(q url.Values) PageParams {
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if !slices.Contains(PerPageOptions, perPage) {
		perPage = DefaultPerPage
	}
	return PageParams{Page: page, PerPage: perPage}
}

// ParseFilters keeps the non-empty values of the allowed keys.
func ParseFilters(q url.Values, allowed ...string) Filters {
	f := make(Filters, len(allowed))
	for _, key := range allowed {
		if v := q.Get(key); v != "" {
			f[key] = v
		}
	}
	return f
}

// Query encodes the filters plus per_page and the given page, for pager links.
func (f Filters) Query(page, perPage int) string {
	q := url.Values{}
	for k, v := range f {
		q.Set(k, v)
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	return q.Encode()
}

// PageInfo is the resolved page of a list with Total matching rows.
type PageInfo struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// NewPageInfo clamps the requested page to the rows that exist.
// PRE: total >= 0
// POST: 1 <= Page <= TotalPages and TotalPages >= 1
func NewPageInfo(p PageParams, total int) PageInfo {
	perPage := p.PerPage
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	totalPages := max((total+perPage-1)/perPage, 1)
	page := min(max(p.Page, 1), totalPages)
	return PageInfo{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Offset is the number of rows before the page.
func (p PageInfo) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// StartRow is the 1-indexed first row shown, or 0 for an empty list.
func (p PageInfo) StartRow() int {
	if p.Total == 0 {
		return 0
	}
	return p.Offset() + 1
}

// EndRow is the 1-indexed last row shown.
func (p PageInfo) EndRow() int {
	return min(p.Offset()+p.PerPage, p.Total)
}

// HasPrev reports whether a previous page exists.
func (p PageInfo) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a following page exists.
func (p PageInfo) HasNext() bool { return p.Page < p.TotalPages }

// ShowPagination reports whether the rows span more than one page.
func (p PageInfo) ShowPagination() bool {
	return p.TotalPages > 1
}
