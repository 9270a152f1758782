package activity

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the activity report under the provided router group.
func RegisterRoutes(group *gin.RouterGroup, activityLog *Log) {
	handler := &httpHandler{log: activityLog}
	group.GET("/monit", handler.report)
}

type httpHandler struct {
	log *Log
}

func (h *httpHandler) report(c *gin.Context) {
	journal, err := h.log.Snapshot()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read activity journal"})
		return
	}
	c.JSON(http.StatusOK, journal)
}
