// Package repository 定义资产、分块、会话与消息的持久化端口
package repository

import "context"

// TxKey 事务句柄在 context 中的键，仓储据此加入外层事务
type TxKey struct{}

// Transactor 在同一事务内执行 fn，fn 返回错误时整体回滚
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pagination 页码从 1 开始
type Pagination struct {
	Page     int
	PageSize int
}

// NewPagination 越界的页码与页大小被收敛到合法区间
func NewPagination(page, pageSize int) Pagination {
	page = max(page, 1)
	switch {
	case pageSize < 1:
		pageSize = DefaultPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}

func (p Pagination) Offset() int { return (p.Page - 1) * p.PageSize }

func (p Pagination) Limit() int { return p.PageSize }

// PagedResult 列表查询结果，Total 为过滤后的总数
type PagedResult[T any] struct {
	Items    []T
	Total    int64
	Page     int
	PageSize int
}

func NewPagedResult[T any](items []T, total int64, p Pagination) *PagedResult[T] {
	return &PagedResult[T]{Items: items, Total: total, Page: p.Page, PageSize: p.PageSize}
}
