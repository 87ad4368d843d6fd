package repository

import (
	"context"

	"gorm.io/gorm"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type PageRequest struct {
	Page     int
	PageSize int
}

// Normalize clamps the request: pages start at 1 and sizes fall within
// [1, MaxPageSize].
func (r PageRequest) Normalize() PageRequest {
	if r.Page < 1 {
		r.Page = DefaultPage
	}
	if r.PageSize < 1 {
		r.PageSize = DefaultPageSize
	}
	r.PageSize = min(r.PageSize, MaxPageSize)
	return r
}

func (r PageRequest) Offset() int {
	n := r.Normalize()
	return (n.Page - 1) * n.PageSize
}

type PageResult[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// paginate counts query and loads one page of it in the given order. The
// query must already carry its model and filters.
func paginate[T any](ctx context.Context, query *gorm.DB, req PageRequest, order ...string) (PageResult[T], error) {
	req = req.Normalize()
	result := PageResult[T]{Page: req.Page, PageSize: req.PageSize, Items: []T{}}
	query = query.WithContext(ctx)
	if err := query.Session(&gorm.Session{}).Count(&result.Total).Error; err != nil {
		return PageResult[T]{}, err
	}
	page := query.Session(&gorm.Session{})
	for _, o := range order {
		page = page.Order(o)
	}
	if err := page.Offset(req.Offset()).Limit(req.PageSize).Find(&result.Items).Error; err != nil {
		return PageResult[T]{}, err
	}
	result.TotalPages = totalPages(result.Total, req.PageSize)
	return result, nil
}

func totalPages(total int64, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
