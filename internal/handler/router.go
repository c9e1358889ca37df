package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/textstat/internal/config"
	"github.com/xxxsen/textstat/internal/middleware"
)

type RouterDeps struct {
	Files     *FileHandler
	Analyses  *AnalysisHandler
	RateLimit config.RateLimitConfig
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	limited := api.Group("")
	limited.Use(middleware.RateLimit(deps.RateLimit.RequestsPerSecond, deps.RateLimit.Burst))
	limited.POST("/upload", deps.Files.Upload)
	limited.POST("/analyze/:file_id", deps.Analyses.Submit)

	api.GET("/files/:id", deps.Files.Get)
	api.GET("/files/:id/analysis", deps.Analyses.Result)
	api.GET("/tasks/:task_id", deps.Analyses.Task)
}
