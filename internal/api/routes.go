package api

import (
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	api := router.Group("/api")
	{
		api.GET("/items", handler.GetItems)
		api.GET("/items/:id", handler.GetItem)
		api.GET("/items/:id/evidence", handler.GetItemEvidence)
		api.GET("/decision-queue", handler.GetDecisionQueue)
		api.GET("/decision-queue/export", handler.ExportDecisionQueue)
		api.POST("/reprice", handler.TriggerReprice)
		api.POST("/fetch-comps", handler.TriggerFetch)
		api.POST("/import/sheet", handler.ImportSheet)
		api.POST("/import/csv", handler.ImportCSV)
		api.POST("/mark-sold", handler.MarkSold)
	}
}
