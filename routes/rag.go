package routes

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"multi-industry-rag/internal/config"
	"multi-industry-rag/internal/logger"
	"multi-industry-rag/middleware"
	"multi-industry-rag/models"
	"multi-industry-rag/services"
	"multi-industry-rag/utils"
)

// SetupRAGRoutes registers the document ingestion and question answering
// endpoints plus the service metadata root.
func SetupRAGRoutes(router *gin.Engine, cfg *config.Config, svc *services.RAGService) {
	router.GET("/", handleRoot())
	router.POST("/ingest", handleIngest(cfg, svc))
	router.POST("/ask", handleAsk(cfg, svc))
}

func handleRoot() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "running",
			"message": "Multi-Industry RAG API",
			"endpoints": gin.H{
				"/ingest": "Upload PDFs with industry tags",
				"/ask":    "Ask questions filtered by industry",
			},
		})
	}
}

func handleIngest(cfg *config.Config, svc *services.RAGService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := c.Request.ParseMultipartForm(cfg.MaxFileSize); err != nil {
			utils.RespondWithBadRequest(c, "File size exceeds maximum limit", nil)
			return
		}

		industry := c.PostForm("industry")

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "No PDF file provided", nil)
			return
		}
		defer file.Close()

		result, err := svc.Ingest(c.Request.Context(), industry, header.Filename, file)
		if err != nil {
			respondPipelineError(c, cfg, err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func handleAsk(cfg *config.Config, svc *services.RAGService) gin.HandlerFunc {
	return func(c *gin.Context) {
		question := c.PostForm("question")
		industry := c.PostForm("industry")

		result, err := svc.Ask(c.Request.Context(), question, industry)
		if err != nil {
			respondPipelineError(c, cfg, err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// respondPipelineError translates pipeline failure kinds into HTTP responses.
// Messages are short and non-leaking; the underlying detail is only logged.
func respondPipelineError(c *gin.Context, cfg *config.Config, err error) {
	logger.Error("Request failed",
		"path", c.FullPath(),
		"request_id", middleware.GetRequestID(c),
		"error", err)

	switch {
	case errors.Is(err, models.ErrInvalidIndustry):
		utils.RespondWithBadRequest(c,
			fmt.Sprintf("Invalid industry. Allowed: %s", strings.Join(models.AllowedIndustries, ", ")), nil)
	case errors.Is(err, services.ErrInvalidFileType):
		utils.RespondWithBadRequest(c, "Only PDF files are allowed", nil)
	case errors.Is(err, services.ErrEmptyQuestion):
		utils.RespondWithBadRequest(c, "Question cannot be empty", nil)
	case errors.Is(err, services.ErrQuestionTooLong):
		utils.RespondWithBadRequest(c,
			fmt.Sprintf("Question must be under %d characters", cfg.MaxQuestionLen), nil)
	case errors.Is(err, services.ErrIndexNotFound):
		utils.RespondWithNotFound(c, "No documents in database. Please upload documents first using /ingest")
	case errors.Is(err, services.ErrExtractionFailed):
		utils.RespondWithInternalError(c, "extraction_failed", "Failed to read PDF file")
	case errors.Is(err, services.ErrEmbeddingUnavailable):
		utils.RespondWithInternalError(c, "embedding_unavailable", "Embedding service unavailable")
	case errors.Is(err, services.ErrIndexWriteFailed):
		utils.RespondWithInternalError(c, "index_write_failed", "Failed to store documents in database")
	case errors.Is(err, services.ErrSearchFailed):
		utils.RespondWithInternalError(c, "search_failed", "Search failed")
	case errors.Is(err, services.ErrDependencyTimeout):
		utils.RespondWithInternalError(c, "dependency_timeout", "Upstream dependency timed out")
	case errors.Is(err, services.ErrGenerationFailed):
		utils.RespondWithInternalError(c, "generation_failed", "Failed to generate answer")
	default:
		utils.RespondWithInternalError(c, "internal_error", "Unexpected error")
	}
}
