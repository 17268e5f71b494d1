package api

import (
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codyseavey/graded-ledger/backend/internal/api/handlers"
	"github.com/codyseavey/graded-ledger/backend/internal/services"
	"github.com/codyseavey/graded-ledger/backend/internal/store"
)

func SetupRouter(cardStore *store.CardStore, equivalence *services.EquivalenceService, engine *services.ValuationEngine, stats *services.StatsService, bundles *services.BundleService, snapshot *services.SnapshotService, dex *services.DexService) *gin.Engine {
	router := gin.Default()

	// CORS configuration - allow origins from environment or use defaults
	config := cors.DefaultConfig()
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		config.AllowOrigins = strings.Split(corsOrigins, ",")
	} else {
		config.AllowOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	config.AllowCredentials = false // Explicitly set
	router.Use(cors.New(config))
	router.Use(metricsMiddleware())

	// Initialize handlers
	cardHandler := handlers.NewCardHandler(cardStore, equivalence, dex)
	valuationHandler := handlers.NewValuationHandler(cardStore, engine)
	collectionHandler := handlers.NewCollectionHandler(stats, snapshot)
	bundleHandler := handlers.NewBundleHandler(bundles)

	// API routes
	api := router.Group("/api")
	api.Use(rateLimitMiddleware(20, 40))
	{
		// Card routes
		cards := api.Group("/cards")
		{
			cards.GET("", cardHandler.ListCards)
			cards.GET("/most-duplicated", cardHandler.MostDuplicated)
			cards.GET("/:cert", cardHandler.GetCard)
			cards.GET("/:cert/duplicates", cardHandler.FindDuplicates)
			cards.GET("/:cert/same", cardHandler.FindSameAttr)
			cards.GET("/:cert/background", cardHandler.FindSameBackground)
			cards.POST("/:cert/valuation", valuationHandler.Appraise)
			cards.POST("/:cert/valuation/copy-from/:source", valuationHandler.AppraiseFromCert)
		}

		// Valuation routes
		valuations := api.Group("/valuations")
		{
			valuations.POST("/recalculate", valuationHandler.Recalculate)
		}

		// Collection routes
		collection := api.Group("/collection")
		{
			collection.GET("/stats", collectionHandler.GetStats)
			collection.GET("/value-history", collectionHandler.GetValueHistory)
			collection.POST("/snapshot", collectionHandler.TakeSnapshot)
		}

		// Bundle routes
		bundleRoutes := api.Group("/bundles")
		{
			bundleRoutes.POST("", bundleHandler.Create)
			bundleRoutes.POST("/quote", bundleHandler.Quote)
			bundleRoutes.GET("/by-cert/:cert", bundleHandler.ByCert)
			bundleRoutes.GET("/:id", bundleHandler.Get)
			bundleRoutes.DELETE("/:id", bundleHandler.Delete)
			bundleRoutes.POST("/:id/reprice", bundleHandler.Reprice)
		}
	}

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return router
}
