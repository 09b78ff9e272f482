package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/reunite-app/api-go/controllers"
	"github.com/reunite-app/api-go/middleware"
)

func SetupMatchRoutes(rg *gin.RouterGroup, matchController *controllers.MatchController) {
	matches := rg.Group("/matches")
	{
		matches.GET("", matchController.GetMatches)
		matches.GET("/:id", matchController.GetMatch)
		matches.PATCH("/:id/verify", middleware.AdminMiddleware(), matchController.VerifyMatch)
	}
}
