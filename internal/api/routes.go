package api

import (
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	// Health check
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/check/:reg_no", handler.CheckStudent)
		v1.GET("/results", handler.ListResults)
		v1.GET("/results/export", handler.ExportResults)
		v1.GET("/results/:reg_no", handler.GetResult)
		v1.GET("/results/:reg_no/history", handler.GetHistory)
		v1.GET("/stats", handler.GetStatistics)
	}
}
