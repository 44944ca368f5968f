package utils

import (
	"fmt"
	"math"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	defaultSize = 20
	maxSize     = 200
)

// Pagination uses 1-based pages; page 0 is treated as the first page.
type Pagination struct {
	Page int `json:"page"`
	Size int `json:"size"`
}

func NewPagination(page, size int) *Pagination {
	p := &Pagination{Page: page, Size: size}
	if p.Size <= 0 {
		p.Size = defaultSize
	}
	if p.Size > maxSize {
		p.Size = maxSize
	}
	if p.Page < 1 {
		p.Page = 1
	}
	return p
}

func (p *Pagination) GetOffset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Size
}

func (p *Pagination) GetLimit() int {
	return p.Size
}

func GetPaginationFromCtx(ctx echo.Context) (*Pagination, error) {
	page, err := atoiOrZero(ctx.QueryParam("page"))
	if err != nil {
		return nil, fmt.Errorf("invalid page: %w", err)
	}
	size, err := atoiOrZero(ctx.QueryParam("size"))
	if err != nil {
		return nil, fmt.Errorf("invalid size: %w", err)
	}
	return NewPagination(page, size), nil
}

func atoiOrZero(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func GetTotalPages(totalCount int, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return int(math.Ceil(float64(totalCount) / float64(pageSize)))
}

func GetHasMore(currPage, totalCount, pageSize int) bool {
	return currPage*pageSize < totalCount
}
