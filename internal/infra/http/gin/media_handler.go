package ginserver

import (
	"errors"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"autoparc/internal/infra/storage/memory"
)

// MediaHandler serves objects of the in-memory store when no external object
// storage is configured.
type MediaHandler struct {
	Store *memory.ObjectStore
}

func (h MediaHandler) Serve(c *gin.Context) {
	if h.Store == nil {
		c.Status(http.StatusNotFound)
		return
	}
	obj, err := h.Store.Get(strings.TrimPrefix(c.Param("key"), "/"))
	if err != nil {
		if errors.Is(err, memory.ErrObjectNotFound) {
			c.Status(http.StatusNotFound)
			return
		}
		c.Status(http.StatusInternalServerError)
		return
	}
	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, contentType, obj.Data)
}
