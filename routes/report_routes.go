package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/reunite-app/api-go/controllers"
)

func SetupReportRoutes(rg *gin.RouterGroup, reportController *controllers.ReportController) {
	reports := rg.Group("/reports")
	{
		reports.POST("", reportController.CreateReport)
		reports.GET("", reportController.GetReports)
		reports.GET("/:id", reportController.GetReport)
		reports.PUT("/:id", reportController.UpdateReport)
		reports.POST("/:id/images", reportController.AddReportImage)
		reports.PATCH("/:id/status", reportController.UpdateReportStatus)
		reports.DELETE("/:id", reportController.DeleteReport)
		reports.POST("/:id/find-matches", reportController.FindMatches)
	}
}
