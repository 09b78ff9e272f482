package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/reunite-app/api-go/controllers"
)

func SetupUploadRoutes(rg *gin.RouterGroup, uploadController *controllers.UploadController) {
	uploads := rg.Group("/uploads")
	{
		uploads.POST("/presigned-url", uploadController.GetPresignedURL)
		uploads.POST("/presigned-urls", uploadController.GetMultiplePresignedURLs)
		uploads.DELETE("/:key", uploadController.DeleteFile)
	}
}
