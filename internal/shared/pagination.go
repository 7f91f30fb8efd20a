package shared

import (
	"encoding/base64"
	"net/url"
	"strconv"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// CursorPage requests the rows following After, ordered by descending id.
type CursorPage struct {
	After int64
	Limit int
}

// CursorResult carries the token of the next page, empty on the last page.
type CursorResult struct {
	Next string
}

// ParseCursorPage reads "cursor" and "limit" query parameters.
func ParseCursorPage(q url.Values) CursorPage {
	page := CursorPage{Limit: defaultPageSize}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		page.Limit = limit
	}
	page.After = DecodeCursor(q.Get("cursor"))
	return page.Normalize()
}

// Normalize clamps the limit into the accepted range.
func (p CursorPage) Normalize() CursorPage {
	if p.Limit <= 0 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	if p.After < 0 {
		p.After = 0
	}
	return p
}

// FetchLimit is the number of rows to query: one extra to detect a next page.
func (p CursorPage) FetchLimit() int {
	return p.Normalize().Limit + 1
}

// EncodeCursor turns a row id into an opaque cursor token.
func EncodeCursor(id int64) string {
	if id <= 0 {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(id, 10)))
}

// DecodeCursor parses a cursor token; malformed tokens start from the top.
func DecodeCursor(token string) int64 {
	if token == "" {
		return 0
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}

// TrimPage cuts rows fetched with FetchLimit down to the page and returns the
// cursor of the next page. idOf extracts the ordering id of a row.
func TrimPage[T any](rows []T, page CursorPage, idOf func(T) int64) ([]T, CursorResult) {
	page = page.Normalize()
	if len(rows) <= page.Limit {
		return rows, CursorResult{}
	}
	rows = rows[:page.Limit]
	return rows, CursorResult{Next: EncodeCursor(idOf(rows[len(rows)-1]))}
}
