// internal/service/page.go
package service

import (
	"github.com/dangerclosesec/lockity/internal/domain"
	"github.com/dangerclosesec/lockity/internal/model"
	"github.com/dangerclosesec/lockity/internal/repository"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// PageRequest selects a 1-based page. Zero fields take the defaults.
type PageRequest struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func (p PageRequest) resolve() (repository.Page, error) {
	page := repository.Page{Number: p.Page, Size: p.Limit}
	if page.Number == 0 {
		page.Number = 1
	}
	if page.Size == 0 {
		page.Size = defaultPageSize
	}

	fields := map[string]string{}
	if page.Number < 0 {
		fields["page"] = "must be a positive integer"
	}
	if page.Size < 0 || page.Size > maxPageSize {
		fields["limit"] = "must be between 1 and 100"
	}
	if len(fields) > 0 {
		return repository.Page{}, domain.InvalidFields("invalid pagination", fields)
	}
	return page, nil
}

// PageResult is one page of items with navigation flags.
type PageResult[T any] struct {
	Items           []T   `json:"items"`
	Total           int64 `json:"total"`
	Page            int   `json:"page"`
	Limit           int   `json:"limit"`
	HasNextPage     bool  `json:"has_next_page"`
	HasPreviousPage bool  `json:"has_previous_page"`
}

func newPageResult[T any](items []T, total int64, page repository.Page) *PageResult[T] {
	if items == nil {
		items = []T{}
	}
	return &PageResult[T]{
		Items:           items,
		Total:           total,
		Page:            page.Number,
		Limit:           page.Size,
		HasNextPage:     int64(page.Number*page.Size) < total,
		HasPreviousPage: page.Number > 1,
	}
}

// roleFilter parses an optional role query value. Empty means no filter.
func roleFilter(raw string) (model.Role, error) {
	if raw == "" {
		return "", nil
	}
	role, ok := model.ParseRole(raw)
	if !ok {
		return "", domain.InvalidFields("invalid role filter", map[string]string{
			"role": "must be one of user admin super_admin",
		})
	}
	return role, nil
}
