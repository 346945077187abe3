package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/seekwell/seekwell/internal/middleware"
	"github.com/seekwell/seekwell/internal/pkg/errcode"
	appErr "github.com/seekwell/seekwell/internal/pkg/errors"
	"github.com/seekwell/seekwell/internal/pkg/response"
)

func getTenantID(c *gin.Context) string {
	value, _ := c.Get(middleware.ContextTenantIDKey)
	tenantID, _ := value.(string)
	return tenantID
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Warn("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("tenant_id", getTenantID(c)),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, appErr.ErrNoTenant):
		response.Error(c, http.StatusUnauthorized, errcode.ErrNoTenant, "tenant context unresolved")
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, http.StatusUnauthorized, errcode.ErrUnauthorized, "unauthorized")
	case errors.Is(err, appErr.ErrForbidden):
		response.Error(c, http.StatusForbidden, errcode.ErrForbidden, "forbidden")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, http.StatusNotFound, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrExtraction):
		response.Error(c, http.StatusBadRequest, errcode.ErrExtractionFailed, "content could not be decoded")
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, err.Error())
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, http.StatusConflict, errcode.ErrConflict, "conflict")
	case errors.Is(err, appErr.ErrTooMany):
		response.Error(c, http.StatusTooManyRequests, errcode.ErrTooMany, "too many requests")
	case errors.Is(err, appErr.ErrUnavailable):
		response.Error(c, http.StatusServiceUnavailable, errcode.ErrEmbeddingUnavailable, "embedding backend unavailable")
	default:
		response.Error(c, http.StatusInternalServerError, errcode.ErrInternal, "internal error")
	}
}
