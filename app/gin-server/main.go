package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/menycars/copiloto/config"
	"github.com/menycars/copiloto/internal/api/handlers"
	"github.com/menycars/copiloto/internal/api/middleware"
	"github.com/menycars/copiloto/internal/api/routes"
	"github.com/menycars/copiloto/internal/cache"
	"github.com/menycars/copiloto/internal/logger"
	"github.com/menycars/copiloto/internal/providers/brain"
	"github.com/menycars/copiloto/internal/providers/embedding"
	"github.com/menycars/copiloto/internal/providers/whatsapp"
	mongorepo "github.com/menycars/copiloto/internal/repositories/mongo"
	postgresrepo "github.com/menycars/copiloto/internal/repositories/postgres"
	"github.com/menycars/copiloto/internal/services"
	"github.com/menycars/copiloto/internal/storage"
)

func main() {
	_ = godotenv.Load()

	l := logger.New()

	// Init MongoDB
	if err := config.InitMongo(); err != nil {
		log.Fatalf("MongoDB init error: %v", err)
	}
	fmt.Println("MongoDB connected")

	// Init PostgreSQL
	if err := config.InitPostgres(); err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}
	fmt.Println("PostgreSQL connected")

	// Init Redis
	if err := config.InitRedis(); err != nil {
		log.Fatalf("Redis init error: %v", err)
	}
	fmt.Println("Redis connected")

	if err := config.EnsureMongoIndexes(); err != nil {
		log.Fatalf("Mongo index error: %v", err)
	}

	ctx := context.Background()
	app := config.LoadApp()

	projectID := os.Getenv("GCP_PROJECT_ID")
	location := os.Getenv("GCP_LOCATION")
	if location == "" {
		location = "us-central1"
	}

	// constructed once, shared for the process lifetime
	salesBrain, err := brain.NewVertexGemini(ctx, projectID, location, os.Getenv("BRAIN_MODEL"))
	if err != nil {
		log.Fatalf("Vertex brain init error: %v", err)
	}
	defer salesBrain.Close()

	embedder, err := embedding.NewVertexEmbedder(ctx, projectID, location, os.Getenv("EMBEDDING_MODEL"))
	if err != nil {
		log.Fatalf("Vertex embedder init error: %v", err)
	}
	defer embedder.Close()

	media, err := storage.NewGCSMedia(ctx, os.Getenv("GCS_MEDIA_BUCKET"))
	if err != nil {
		log.Fatalf("GCS init error: %v", err)
	}
	defer media.Close()

	sender := whatsapp.NewMaytapi(
		os.Getenv("MAYTAPI_BASE_URL"),
		os.Getenv("MAYTAPI_PRODUCT_ID"),
		os.Getenv("MAYTAPI_PHONE_ID"),
		os.Getenv("MAYTAPI_TOKEN"),
	)

	// repositories
	chatRepo := mongorepo.NewChatRepo(config.MongoDatabase())
	leadRepo := postgresrepo.NewLeadRepo(config.PostgresDB)
	taskRepo := postgresrepo.NewTaskRepo(config.PostgresDB)
	vehicleRepo := postgresrepo.NewVehicleRepo(config.PostgresDB)
	convRepo := postgresrepo.NewConversationRepo(config.PostgresDB)

	// services
	redisCache := cache.NewRedisCache(config.RedisClient)
	leadSvc := services.NewLeadService(leadRepo)
	inventorySvc := services.NewInventoryService(vehicleRepo, redisCache, app.InventoryLimit, app.InventoryCacheTTL)
	chatSvc := services.NewChatService(chatRepo, convRepo, embedder)

	dispatcher := services.NewDispatchService(services.DispatchDeps{
		Chats:            chatRepo,
		Leads:            leadSvc,
		Tasks:            taskRepo,
		Convs:            convRepo,
		Inventory:        inventorySvc,
		Brain:            salesBrain,
		Sender:           sender,
		Embedder:         embedder,
		Media:            media,
		Redis:            config.RedisClient,
		Logger:           l,
		HistoryLimit:     app.HistoryLimit,
		BrainTimeout:     app.BrainTimeout,
		MediaSendDelay:   app.MediaSendDelay,
		AppraisalBaseURL: app.AppraisalBaseURL,
	})

	coalescer := services.NewCoalescerService(chatRepo, dispatcher, sender, l, app.QuietPeriod, app.ArrivalTolerance)

	// handlers
	webhookHandler := handlers.NewWebhookHandler(coalescer, l)
	chatHandler := handlers.NewChatHandler(chatSvc, config.RedisClient)
	leadHandler := handlers.NewLeadHandler(leadSvc, taskRepo)
	vehicleHandler := handlers.NewVehicleHandler(inventorySvc, media)

	// Start Gin server
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(l))

	routes.RegisterRoutes(r, routes.Deps{
		Webhook: webhookHandler,
		Chat:    chatHandler,
		Lead:    leadHandler,
		Vehicle: vehicleHandler,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
