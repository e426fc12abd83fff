package utils

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AnshRaj112/trailhub-backend/pkg/apperr"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
	// MaxPage bounds ?page so the skip offset cannot overflow.
	MaxPage          = 10000
)

// PageParams is the page/limit pair read from a query string.
type PageParams struct {
	Page  int
	Limit int
}

// Skip returns the number of records to skip for this page.
func (p PageParams) Skip() int64 {
	page, limit := int64(p.Page), int64(p.Limit)
	if page < 1 || limit < 1 {
		return 0
	}
	return (min(page, MaxPage) - 1) * min(limit, MaxPageLimit)
}

// Page is the data shape of every paginated list response.
type Page struct {
	Items   interface{} `json:"items"`
	Total   int64       `json:"total"`
	Page    int         `json:"page"`
	Limit   int         `json:"limit"`
	HasMore bool        `json:"hasMore"`
}

func NewPage(items interface{}, total int64, p PageParams) Page {
	return Page{
		Items:   items,
		Total:   total,
		Page:    p.Page,
		Limit:   p.Limit,
		HasMore: p.Skip()+int64(p.Limit) < total,
	}
}

// ParsePageParams reads ?page and ?limit, clamping to sane bounds.
func ParsePageParams(r *http.Request) PageParams {
	p := PageParams{Page: 1, Limit: DefaultPageLimit}
	q := r.URL.Query()
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		p.Page = min(v, MaxPage)
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		p.Limit = v
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// CursorParams is the before/limit pair used by message history.
type CursorParams struct {
	Before *time.Time
	Limit  int
}

// ParseCursorParams reads ?before (RFC3339) and ?limit.
func ParseCursorParams(r *http.Request) (CursorParams, error) {
	c := CursorParams{Limit: 50}
	q := r.URL.Query()
	if raw := strings.TrimSpace(q.Get("before")); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return c, apperr.Validation("before must be an RFC3339 timestamp")
		}
		c.Before = &t
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		c.Limit = v
	}
	if c.Limit > MaxPageLimit {
		c.Limit = MaxPageLimit
	}
	return c, nil
}
