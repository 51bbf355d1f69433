package main

import (
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"tws-options/controllers"
	"tws-options/database"
	"tws-options/services"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using environment variables")
	}

	dbPath := getEnv("DATA_DIR", "./data") + "/tws-options.db"
	storage, err := database.NewLocalStorage(dbPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open local storage")
	}
	defer storage.Close()

	gateway := services.NewTWSGateway(getEnv("GATEWAY_URL", "ws://127.0.0.1:5000/ws"))

	estimator := services.NewStrikeEstimator()
	selector := services.NewStrikeSelector(estimator)
	collector := services.NewMarketDataCollector(gateway, services.DefaultCollectorConfig())
	assembler := services.NewChainAssembler()
	activity := services.NewActivityLogger(storage)
	chainService := services.NewChainService(gateway, collector, selector, assembler, activity)

	chainController := controllers.NewChainController(chainService)
	sessionController := controllers.NewSessionController(gateway)
	activityController := controllers.NewActivityController(activity)

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins(),
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		AllowCredentials: true,
	}))

	router.GET("/", sessionController.HandleStatus)
	router.POST("/connect", sessionController.HandleConnect)
	router.POST("/disconnect", sessionController.HandleDisconnect)
	router.GET("/search/:symbol", chainController.HandleSearch)
	router.GET("/options/expirations/:symbol", chainController.HandleGetExpirations)
	router.POST("/options/chain", chainController.HandleGetChain)
	router.GET("/activity/recent", activityController.HandleRecentActivity)

	port := getEnv("PORT", "8000")
	logger.WithField("port", port).Info("Starting options chain server")
	if err := router.Run(":" + port); err != nil {
		logger.WithError(err).Fatal("Server exited")
	}
}

func corsOrigins() []string {
	raw := getEnv("CORS_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173")
	origins := strings.Split(raw, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
