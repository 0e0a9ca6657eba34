package paging

import (
	"github.com/Gobusters/ectolinq"

	"github.com/Ramsey-B/fern/pkg/errors"
)

const DefaultPageSize = 100

// Paginate splits items into pages of pageSize, keeping order. Every page but the last is
// full. Empty input gives no pages at all rather than one empty page.
func Paginate[T any](items []T, pageSize int) ([][]T, error) {
	if pageSize < 1 {
		return nil, errors.InvalidConfiguration("page size must be at least 1, got %d", pageSize).AddStage("paginate")
	}
	if len(items) == 0 {
		return [][]T{}, nil
	}

	pages := ectolinq.Chunk(items, pageSize)
	// Chunk slices share the input's backing array; copy so callers own their pages.
	for i, page := range pages {
		owned := make([]T, len(page))
		copy(owned, page)
		pages[i] = owned
	}
	return pages, nil
}

// PageCount is the number of pages Paginate would produce.
func PageCount(total, pageSize int) int {
	if pageSize < 1 || total <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
