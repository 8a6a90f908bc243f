package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Pagination bounds for the admin inbox.
const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ParsePagination parses page and page_size query params, enforcing bounds
// and applying defaults when values are missing or invalid.
func ParsePagination(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(DefaultPage)))
	if err != nil || page < 1 {
		page = DefaultPage
	}

	size, err := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(DefaultPageSize)))
	if err != nil || size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	return page, size
}

// WritePaginated standardizes paginated responses with an items key, a
// pagination block, and optional extras.
func WritePaginated(c *gin.Context, itemsKey string, items interface{}, page, pageSize, total int, extra gin.H) {
	response := gin.H{
		itemsKey: items,
		"pagination": gin.H{
			"page":      page,
			"page_size": pageSize,
			"total":     total,
		},
	}
	for k, v := range extra {
		response[k] = v
	}
	c.JSON(http.StatusOK, response)
}
