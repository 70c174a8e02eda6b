package http

import (
	"github.com/gin-gonic/gin"

	"judgment-rag/internal/bootstrap"
	"judgment-rag/internal/transport/http/handler"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.MaxMultipartMemory = app.Config.App.MaxUploadSize

	healthHandler := handler.NewHealthHandler(app)
	judgmentHandler := handler.NewJudgmentHandler(app.Pipeline, app.Config.App.MaxUploadSize, app.Logger)

	router.GET("/healthz", healthHandler.Check)

	v1 := router.Group("/api/v1")

	judgment := v1.Group("/judgment")
	judgment.POST("/extract", judgmentHandler.Extract)
	judgment.GET("/search", judgmentHandler.Search)

	judgments := v1.Group("/judgments")
	judgments.GET("", judgmentHandler.List)
	judgments.GET("/:id", judgmentHandler.Get)
	judgments.GET("/:id/document", judgmentHandler.Document)

	return router
}
