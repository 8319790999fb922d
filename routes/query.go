package routes

import (
	"net/http"
	"strings"

	"contract-qa-platform/models"
	"contract-qa-platform/services"
	"contract-qa-platform/utils"

	"github.com/gin-gonic/gin"
)

// SetupQueryRoutes registers the question answering endpoint. A nil
// cache disables response memoization.
func SetupQueryRoutes(router *gin.Engine, engine *services.QueryEngine, registry *services.Registry, cache *services.QueryCache) {
	router.POST("/query", func(c *gin.Context) {
		var req models.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}
		if strings.TrimSpace(req.Question) == "" {
			utils.RespondWithBadRequest(c, "question must not be empty", nil)
			return
		}

		ctx := c.Request.Context()
		documentIDs := req.DocumentIDs
		if len(documentIDs) == 0 && req.ContractSetID != "" {
			docs, err := registry.ListDocuments(ctx, req.ContractSetID)
			if err != nil {
				utils.RespondWithInternalError(c, "Failed to resolve contract set", gin.H{"error": err.Error()})
				return
			}
			for _, doc := range docs {
				if doc.Status == models.StatusCompleted {
					documentIDs = append(documentIDs, doc.DocumentID)
				}
			}
		}

		if cache != nil {
			if cached, ok := cache.Get(ctx, req.Question, documentIDs); ok {
				c.Header("X-Cache", "HIT")
				c.JSON(http.StatusOK, cached)
				return
			}
		}

		response, err := engine.Query(ctx, req.Question, documentIDs, req.TopK)
		if err != nil {
			utils.RespondWithServiceUnavailable(c, err.Error())
			return
		}

		if cache != nil {
			cache.Set(ctx, req.Question, documentIDs, response)
		}

		c.JSON(http.StatusOK, response)
	})
}
