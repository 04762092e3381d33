package api

import (
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/hn-comb/app/database"
)

const statsWindow = 24 * time.Hour

func NewHandler(feedPath string, status StatusInterface, journal database.FetchJournal,
	scheduler RunRequester, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		feedPath:  feedPath,
		status:    status,
		journal:   journal,
		scheduler: scheduler,
		logger:    logger,
	}
}

func (h *Handler) GetFeed(c *gin.Context) {
	file, err := os.Open(h.feedPath)
	if err != nil {
		if os.IsNotExist(err) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Feed has not been generated yet"})
			return
		}
		h.logger.Error("Failed to open feed", "path", h.feedPath, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		h.logger.Error("Failed to stat feed", "path", h.feedPath, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	snapshot := h.status.Snapshot()

	c.Header("Content-Type", "application/atom+xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(snapshot.Items))
	c.Header("X-Last-Updated", info.ModTime().UTC().Format(time.RFC3339))

	http.ServeContent(c.Writer, c.Request, "feed.atom", info.ModTime(), file)
}

func (h *Handler) GetHealth(c *gin.Context) {
	snapshot := h.status.Snapshot()

	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"status":    "ok",
		"runs":      snapshot,
	}

	code := http.StatusOK
	if !h.status.Healthy() {
		health["status"] = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	if h.journal == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Fetch journal is disabled"})
		return
	}

	stats, err := h.journal.GetFetchStats(c.Request.Context(), time.Now().Add(-statsWindow))
	if err != nil {
		h.logger.Error("Database error", "operation", "get_fetch_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"window":  statsWindow.String(),
		"fetches": stats,
	})
}

func (h *Handler) APIRefresh(c *gin.Context) {
	if err := h.scheduler.RequestRun(); err != nil {
		h.logger.Warn("Failed to enqueue refresh", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to enqueue refresh", "message": err.Error()})
		return
	}

	h.logger.Info("Refresh requested", "client_ip", c.ClientIP())

	c.JSON(http.StatusAccepted, gin.H{"message": "Refresh enqueued"})
}
