package main

import (
	"context"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"copa-dashboard/config"
	"copa-dashboard/database"
	"copa-dashboard/handlers"
	"copa-dashboard/middleware"
	"copa-dashboard/services"
	"copa-dashboard/utils"
	"copa-dashboard/utils/encryption"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Warnf(".env file not found, using system environment variables")
	}

	cfg := config.Load()

	db, err := utils.DBConnect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.InitSchema(db); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	encryptor, err := encryption.NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		log.Fatalf("Failed to initialize encryptor: %v", err)
	}

	listingService := database.NewListingService(db, encryptor)

	neighborhoods := services.NewNeighborhoodsService(cfg.NeighborhoodsURL, cfg.NeighborhoodsFile)
	if err := neighborhoods.Load(context.Background()); err != nil {
		// The dashboard still works without polygons; overlays and
		// point-in-polygon lookups come back once a reload succeeds.
		log.Errorf("Failed to load neighborhoods: %v", err)
	} else {
		syncNeighborhoodTable(listingService, neighborhoods)
	}

	geocodeClient := services.NewGeocodeClient(cfg.GeocodeURL, cfg.GeocodeUserAgent)

	storageService, err := services.NewStorageService(
		cfg.StorageEndpoint, cfg.StorageAccessKey, cfg.StorageSecretKey,
		cfg.StorageBucket, cfg.StorageUseSSL, cfg.SignedURLTTL, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("Failed to initialize attachment storage: %v", err)
	}

	websocketHub := services.NewWebSocketHub()
	go websocketHub.Start()
	defer websocketHub.Stop()

	listingHandler := handlers.NewListingHandler(listingService, neighborhoods, geocodeClient, storageService, websocketHub)
	websocketHandler := handlers.NewWebSocketHandler(websocketHub)

	r := gin.Default()

	// CORS middleware for Gin
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	})

	// Health endpoint (public)
	r.GET("/health", listingHandler.HealthHandler)

	// Protected routes
	api := r.Group("/api/v3")
	api.Use(middleware.AuthMiddleware(cfg))
	{
		api.GET("/listings", listingHandler.ListingsHandler)
		api.POST("/listings", listingHandler.IngestListingHandler)
		api.GET("/listings/:id", listingHandler.GetListingHandler)
		api.PUT("/listings/:id", listingHandler.UpdateListingHandler)
		api.GET("/listings/:id/details", listingHandler.ListingDetailsHandler)
		api.GET("/listings/:id/emails", listingHandler.ListingEmailsHandler)
		api.GET("/attachments/signed-url", listingHandler.SignedURLHandler)
		api.GET("/neighborhoods", listingHandler.NeighborhoodsHandler)
		api.GET("/neighborhoods/names", listingHandler.NeighborhoodNamesHandler)
		api.GET("/geocode", listingHandler.GeocodeHandler)
		api.GET("/ws/listings", websocketHandler.ListenListings)
		api.GET("/ws/health", websocketHandler.HealthCheck)
	}

	log.Infof("Starting COPA dashboard service on %s:%s", cfg.Host, cfg.Port)
	r.Run(cfg.Host + ":" + cfg.Port)
}

// syncNeighborhoodTable refreshes the reference table the editor dropdown
// reads from the freshly loaded feed.
func syncNeighborhoodTable(listingService *database.ListingService, neighborhoods *services.NeighborhoodsService) {
	names, err := neighborhoods.Names()
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := listingService.ReplaceNeighborhoods(ctx, names); err != nil {
		log.Errorf("Failed to sync neighborhood table: %v", err)
	}
}
