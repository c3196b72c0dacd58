package pagination

import (
	"fmt"
	"strings"
)

const (
	DefaultPage = 0
	DefaultSize = 10
	MaxSize     = 100
	DefaultSort = "createdAt"
)

// Request is a 0-based page request with a single sort key.
type Request struct {
	Page int
	Size int
	Sort string
	Desc bool
}

func Default() Request {
	return Request{Page: DefaultPage, Size: DefaultSize, Sort: DefaultSort, Desc: true}
}

// New applies defaults and rejects values outside the documented ranges.
// Sort keys are checked against allowed by the caller's SQL mapping.
func New(page, size int, sort, direction string, allowed map[string]string) (Request, error) {
	r := Default()
	if page < 0 {
		return r, fmt.Errorf("page must be >= 0")
	}
	r.Page = page

	if size != 0 {
		if size < 1 || size > MaxSize {
			return r, fmt.Errorf("size must be between 1 and %d", MaxSize)
		}
		r.Size = size
	}

	if sort != "" {
		if _, ok := allowed[sort]; !ok {
			return r, fmt.Errorf("unsupported sort field %q", sort)
		}
		r.Sort = sort
	}

	switch strings.ToLower(direction) {
	case "", "desc":
		r.Desc = true
	case "asc":
		r.Desc = false
	default:
		return r, fmt.Errorf("sort direction must be asc or desc")
	}
	return r, nil
}

func (r Request) Offset() int { return r.Page * r.Size }

// OrderBy renders the ORDER BY clause body using columns to map sort keys,
// falling back to the default key when the sort key is unknown.
func (r Request) OrderBy(columns map[string]string) string {
	col, ok := columns[r.Sort]
	if !ok {
		col = columns[DefaultSort]
	}
	dir := "ASC"
	if r.Desc {
		dir = "DESC"
	}
	return col + " " + dir
}

// Page is one page of results plus totals.
type Page[T any] struct {
	Content       []T  `json:"content"`
	Page          int  `json:"page"`
	Size          int  `json:"size"`
	TotalElements int  `json:"total_elements"`
	TotalPages    int  `json:"total_pages"`
	HasNext       bool `json:"has_next"`
}

func NewPage[T any](content []T, req Request, total int) Page[T] {
	if content == nil {
		content = []T{}
	}
	pages := 0
	if req.Size > 0 {
		pages = (total + req.Size - 1) / req.Size
	}
	return Page[T]{
		Content:       content,
		Page:          req.Page,
		Size:          req.Size,
		TotalElements: total,
		TotalPages:    pages,
		HasNext:       req.Offset()+len(content) < total,
	}
}

// Map converts page content while keeping the totals.
func Map[T, U any](p Page[T], fn func(T) U) Page[U] {
	out := make([]U, 0, len(p.Content))
	for _, item := range p.Content {
		out = append(out, fn(item))
	}
	return Page[U]{
		Content:       out,
		Page:          p.Page,
		Size:          p.Size,
		TotalElements: p.TotalElements,
		TotalPages:    p.TotalPages,
		HasNext:       p.HasNext,
	}
}
