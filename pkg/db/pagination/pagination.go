package pagination

import "gorm.io/gorm"

const (
	DefaultPageSize = 10
	MaxPageSize     = 250
)

type Pagination struct {
	Page     int `form:"page,default=1" validate:"gte=1"`
	PageSize int `form:"page_size,default=10" validate:"gte=1,lte=250"`
}

type PageInfo struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalCount int64 `json:"total_count"`
	HasMore    bool  `json:"has_more"`
}

func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

func (p Pagination) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.PageSize
}

func (p Pagination) Apply(stmt *gorm.DB) *gorm.DB {
	p = p.Normalize()
	return stmt.Offset(p.Offset()).Limit(p.PageSize)
}

func BuildPageInfo(p Pagination, total int64) PageInfo {
	p = p.Normalize()
	return PageInfo{
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalCount: total,
		HasMore:    int64(p.Offset()+p.PageSize) < total,
	}
}
