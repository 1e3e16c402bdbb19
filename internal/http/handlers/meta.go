package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type MetaHandler struct {
	env     string
	version string
	commit  string
}

func NewMetaHandler(env, version, commit string) *MetaHandler {
	return &MetaHandler{env: env, version: version, commit: commit}
}

func (h *MetaHandler) GetMeta(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "lendcore",
		"version": h.version,
		"commit":  h.commit,
		"env":     h.env,
	})
}
