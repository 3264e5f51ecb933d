package routes

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"shift-staffing-client/middleware"
	"shift-staffing-client/models"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success":   true,
		"data":      data,
		"timestamp": timestamp(),
	})
}

func respondMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   message,
		"timestamp": timestamp(),
	})
}

func respondError(c *gin.Context, status int, message string, fieldErrors ...models.FieldError) {
	c.JSON(status, models.APIError{
		Success:   false,
		Message:   message,
		Errors:    fieldErrors,
		Timestamp: timestamp(),
		RequestID: c.GetHeader(middleware.RequestIDHeader),
	})
}

func fieldError(field, message string) models.FieldError {
	return models.FieldError{Field: field, Message: message, Code: "invalid"}
}

// paging reads page and limit with the server defaults applied.
func paging(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageLimit)))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

// respondPage slices items to the requested page and reports the total.
func respondPage[T any](c *gin.Context, items []T) {
	page, limit := paging(c)
	total := len(items)

	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	c.JSON(http.StatusOK, models.Page[T]{
		Success: true,
		Data:    append([]T{}, items[start:end]...),
		Pagination: &models.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: (total + limit - 1) / limit,
		},
		Timestamp: timestamp(),
	})
}

func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, "Invalid id", fieldError("id", "must be a positive integer"))
		return 0, false
	}
	return uint(id), true
}

func queryUint(c *gin.Context, key string) uint {
	v, err := strconv.ParseUint(c.Query(key), 10, 64)
	if err != nil {
		return 0
	}
	return uint(v)
}
