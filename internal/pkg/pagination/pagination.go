package pagination

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// Catalog and user listings page at 10 rows by default; 100 is the
// ceiling so a single request cannot pull the whole table.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Params carries clamped paging values
type Params struct {
	Page   int `json:"page"`
	Limit  int `json:"limit"`
	Offset int `json:"-"`
}

// GetParams reads page/limit from the query string, clamped to the
// allowed range
func GetParams(c *fiber.Ctx) *Params {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", strconv.Itoa(DefaultLimit)))

	page, limit = Clamp(page, limit)
	return &Params{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

// Clamp normalizes raw paging values into the allowed range
func Clamp(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

// Pages returns the page count for a total at the given limit
func Pages(total int64, limit int) int {
	if limit < 1 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
