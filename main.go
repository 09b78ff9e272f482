package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/reunite-app/api-go/config"
	"github.com/reunite-app/api-go/jobs"
	"github.com/reunite-app/api-go/matching"
	"github.com/reunite-app/api-go/notifications"
	"github.com/reunite-app/api-go/routes"
)

func main() {
	// Set up logging to stdout
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	// Initialize database
	db := config.InitDB()

	// Matching pipeline
	matchCfg := config.GetMatchingConfig()
	extractor := matching.NewExtractor(matchCfg)
	processor := matching.NewProcessor(db, extractor)
	dispatcher := notifications.NewDispatcher(db)
	resolver := matching.NewResolver(db, matchCfg, extractor, dispatcher)

	// Background work queue
	queue := jobs.NewQueue(db)
	jobs.RegisterMatchingHandlers(queue, processor, resolver)
	jobs.RegisterCleanupHandler(queue, db)

	ctx := context.Background()
	queue.Start(ctx)
	queue.ScheduleRecurring(ctx, jobs.TypeCleanupOldData, 24*time.Hour)
	defer queue.Stop()

	// Create a new Gin router
	r := gin.Default()

	// Add logging middleware
	r.Use(gin.LoggerWithWriter(os.Stdout))

	// Initialize routes
	routes.SetupRoutes(r, db, queue, processor, resolver, extractor, matchCfg)

	// Start the server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting server on port %s", port)
	r.Run(":" + port)
}
