package pagination

const (
	defaultLimit = 10
	maxLimit     = 100
)

// Params are normalized page/limit values for offset pagination.
type Params struct {
	Page  int
	Limit int
}

// Normalize clamps raw query values into usable pagination parameters.
// Page defaults to 1, limit to 10, and limit is capped at 100.
func Normalize(page, limit int) Params {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return Params{Page: page, Limit: limit}
}

// Offset returns the row offset for the current page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Meta describes one page of a listing.
type Meta struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalCount  int64 `json:"totalCount"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// BuildMeta computes page metadata from the normalized params and the total
// row count.
func BuildMeta(p Params, totalCount int64) Meta {
	totalPages := int((totalCount + int64(p.Limit) - 1) / int64(p.Limit))
	return Meta{
		CurrentPage: p.Page,
		TotalPages:  totalPages,
		TotalCount:  totalCount,
		HasNextPage: p.Page < totalPages,
		HasPrevPage: p.Page > 1,
	}
}
