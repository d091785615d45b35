package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hawsen-the-first/ynab-sync/internal/services/dedup"
)

// ImportsHandler exposes the deduplication ledger for inspection.
type ImportsHandler struct {
	dedup *dedup.Service
}

func NewImportsHandler(dedupSvc *dedup.Service) *ImportsHandler {
	return &ImportsHandler{dedup: dedupSvc}
}

func (h *ImportsHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	records, err := h.dedup.History(limit, c.Query("source"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"imports": records, "count": len(records)})
}

func (h *ImportsHandler) Stats(c *gin.Context) {
	stats, err := h.dedup.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
