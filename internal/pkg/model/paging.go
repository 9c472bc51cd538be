package model

import (
	"github.com/go-playground/validator/v10"
)

// PagingQuery represents common pagination parameters.
// Bind from query parameters using Gin: paging, page, page_size.
type PagingQuery struct {
	Paging   *bool `form:"paging" json:"paging"`
	Page     int   `form:"page" json:"page" validate:"omitempty,gte=1"`
	PageSize int   `form:"page_size" json:"page_size" validate:"omitempty,gte=1,lte=1000"`
}

// SetDefaults applies defaults and caps according to max size.
func (p *PagingQuery) SetDefaults(defaultPage, defaultSize, maxSize int) {
	if p.Page <= 0 {
		p.Page = defaultPage
	}
	if p.PageSize <= 0 {
		p.PageSize = defaultSize
	}
	if maxSize > 0 && p.PageSize > maxSize {
		p.PageSize = maxSize
	}
}

// Enabled reports whether paging is on; it defaults to true.
func (p PagingQuery) Enabled() bool { return p.Paging == nil || *p.Paging }

// Offset returns the slice offset for the current page.
func (p PagingQuery) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// Limit returns the page size.
func (p PagingQuery) Limit() int { return p.PageSize }

// Bounds clamps the current page to a list of total items.
func (p PagingQuery) Bounds(total int) (start, end int) {
	start = p.Offset()
	if start > total {
		start = total
	}
	end = start + p.Limit()
	if end > total {
		end = total
	}
	return start, end
}

// Validate validates the paging parameters using go-playground/validator.
func (p PagingQuery) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	return v.Struct(p)
}

// FilterQuery holds the table filters bound from the query string.
type FilterQuery struct {
	Text   string `form:"q" json:"q" validate:"max=200"`
	Status string `form:"status" json:"status" validate:"max=64"`
	DSRC   string `form:"dsrc" json:"dsrc" validate:"max=64"`
}

// Validate validates the filter parameters using go-playground/validator.
func (f FilterQuery) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	return v.Struct(f)
}
