package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/seekwell/seekwell/internal/pkg/errcode"
	"github.com/seekwell/seekwell/internal/pkg/response"
	"github.com/seekwell/seekwell/internal/service"
)

type SearchHandler struct {
	search   *service.SearchService
	defaultK int
}

func NewSearchHandler(search *service.SearchService, defaultK int) *SearchHandler {
	if defaultK <= 0 {
		defaultK = 10
	}
	return &SearchHandler{search: search, defaultK: defaultK}
}

// Search handles GET /search. Parameter problems are rejected outright, the
// scorer never runs on a half-understood request.
func (h *SearchHandler) Search(c *gin.Context) {
	input := service.SearchInput{
		Query:    c.Query("q"),
		K:        h.defaultK,
		Mode:     c.Query("mode"),
		FileType: c.Query("file_type"),
	}
	if value := c.Query("k"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			response.Error(c, http.StatusBadRequest, errcode.ErrInvalidLimit, "k must be an integer")
			return
		}
		input.K = parsed
	}
	if value := c.Query("alpha"); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			response.Error(c, http.StatusBadRequest, errcode.ErrInvalidAlpha, "alpha must be a number")
			return
		}
		input.Alpha = &parsed
	}
	if value := c.Query("created_after"); value != "" {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			response.Error(c, http.StatusBadRequest, errcode.ErrInvalidQuery, "created_after must be a unix timestamp")
			return
		}
		input.CreatedAfter = parsed
	}
	if value := c.Query("created_before"); value != "" {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			response.Error(c, http.StatusBadRequest, errcode.ErrInvalidQuery, "created_before must be a unix timestamp")
			return
		}
		input.CreatedBefore = parsed
	}

	hits, err := h.search.Search(c.Request.Context(), input)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"hits": hits, "count": len(hits)})
}
