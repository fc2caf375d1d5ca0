package monitor

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Handler exposes a monitor over HTTP for the developer tooling.
type Handler struct {
	Mon *Monitor
	// Window is the health lookback; zero means DefaultHealthWindow.
	Window time.Duration
	// AllowClear enables DELETE /logs.
	AllowClear bool
	// OnClear runs after a successful clear.
	OnClear func()
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats", h.stats)
	rg.GET("/health", h.health)
	rg.GET("/logs", h.logs)
	rg.GET("/errors", h.recentErrors)
	rg.GET("/export", h.export)
	rg.DELETE("/logs", h.clear)
}

func (h *Handler) stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.Mon.Stats())
}

func (h *Handler) health(c *gin.Context) {
	window := h.Window
	if window <= 0 {
		window = DefaultHealthWindow
	}
	c.JSON(http.StatusOK, h.Mon.Health(window))
}

func (h *Handler) logs(c *gin.Context) {
	logs := h.Mon.Logs()
	c.JSON(http.StatusOK, gin.H{"total": len(logs), "capacity": h.Mon.Capacity(), "logs": logs})
}

func (h *Handler) recentErrors(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	c.JSON(http.StatusOK, h.Mon.RecentErrors(limit))
}

func (h *Handler) export(c *gin.Context) {
	b, err := h.Mon.Export()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}
	name := "api-logs-" + time.Now().UTC().Format("20060102-150405") + ".json"
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/json", b)
}

func (h *Handler) clear(c *gin.Context) {
	if !h.AllowClear {
		c.JSON(http.StatusForbidden, gin.H{"error": "monitor clearing is disabled"})
		return
	}
	h.Mon.Clear()
	if h.OnClear != nil {
		h.OnClear()
	}
	c.Status(http.StatusNoContent)
}
