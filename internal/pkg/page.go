package pkg

const (
	DefaultPageSize = 20
	MaxPageSize     = 50
)

// ClampPage 修正分页参数：page 从 1 开始，size 超出范围时回落到默认值
func ClampPage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > MaxPageSize {
		size = DefaultPageSize
	}
	return page, size
}
