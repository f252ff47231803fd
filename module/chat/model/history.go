package model

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// HistoryMeta 分页元信息，字段与前端约定保持一致。
type HistoryMeta struct {
	CurrentPage     int   `json:"currentPage"`
	ItemsPerPage    int   `json:"itemsPerPage"`
	TotalItems      int64 `json:"totalItems"`
	TotalPages      int   `json:"totalPages"`
	HasPreviousPage bool  `json:"hasPreviousPage"`
	HasNextPage     bool  `json:"hasNextPage"`
}

// HistoryPage 两个用户之间的一页消息，按 createdAt 升序。
type HistoryPage struct {
	Items []Message   `json:"items"`
	Meta  HistoryMeta `json:"meta"`
}

// NewHistoryMeta 根据总数计算分页信息。
func NewHistoryMeta(page, limit int, total int64) HistoryMeta {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return HistoryMeta{
		CurrentPage:     page,
		ItemsPerPage:    limit,
		TotalItems:      total,
		TotalPages:      totalPages,
		HasPreviousPage: page > 1,
		HasNextPage:     page < totalPages,
	}
}

// NormalizePage 补默认值并把 limit 限制在 [1, MaxLimit]。
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}
