package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// Defaults sized for inventory screens: medicine catalogs and ledger
// history page in windows of 20, capped so a single request cannot pull
// the whole transaction table.
const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params is the validated page window for a list query.
type Params struct {
	Page   int
	Limit  int
	Offset int
}

// Parse reads page/limit query parameters, falling back to defaults for
// missing or malformed values and clamping limit to MaxLimit.
func Parse(c *gin.Context) Params {
	page := intQuery(c, "page", DefaultPage)
	limit := intQuery(c, "limit", DefaultLimit)

	if page < 1 {
		page = DefaultPage
	}
	switch {
	case limit < 1:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	return Params{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
