package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hawsen-the-first/ynab-sync/internal/services/ynab"
)

type YNABHandler struct {
	client *ynab.Client
}

func NewYNABHandler(client *ynab.Client) *YNABHandler {
	return &YNABHandler{client: client}
}

func (h *YNABHandler) TestConnection(c *gin.Context) {
	connected := h.client.TestConnection(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"connected": connected})
}

func (h *YNABHandler) ListBudgets(c *gin.Context) {
	budgets, err := h.client.Budgets(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"budgets": budgets})
}

func (h *YNABHandler) ListAccounts(c *gin.Context) {
	accounts, err := h.client.Accounts(c.Request.Context(), c.Param("budgetId"))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}
