package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/reunite-app/api-go/controllers"
)

func SetupNotificationRoutes(rg *gin.RouterGroup, notificationController *controllers.NotificationController) {
	notifications := rg.Group("/notifications")
	{
		notifications.GET("", notificationController.GetNotifications)
		notifications.PATCH("/:id/read", notificationController.MarkRead)
	}
}
