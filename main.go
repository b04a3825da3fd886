package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"newsfacts/config"
	"newsfacts/facts"
	"newsfacts/models"
	"newsfacts/providers"
	"newsfacts/providers/currents"
	"newsfacts/providers/newsapi"
	"newsfacts/services"
	"newsfacts/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	articlesFetchedCounter prometheus.Counter
	factsExtractedCounter  prometheus.Counter
)

func init() {
	articlesFetchedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "articles_fetched_total",
			Help: "Total number of articles fetched and stored.",
		},
	)
	factsExtractedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "facts_extracted_total",
			Help: "Total number of articles with successfully extracted facts.",
		},
	)
	prometheus.MustRegister(articlesFetchedCounter, factsExtractedCounter)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to articles database.")

	logging.Info("Running database auto-migration...")
	if err := db.AutoMigrate(&models.Article{}); err != nil {
		logging.Fatal("Auto-migration failed", zap.Error(err))
	}

	// Provider in Fallback-Reihenfolge: NewsAPI zuerst, CurrentsAPI nur
	// wenn ein Key konfiguriert ist.
	newsAPIFetcher := newsapi.NewFetcher(cfg, logging)
	enabledProviders := []providers.Provider{newsAPIFetcher}
	if cfg.CurrentsAPIKey != "" {
		enabledProviders = append(enabledProviders, currents.NewFetcher(cfg, logging))
	}

	store := storage.NewGormStore(db, logging)
	extractor, err := facts.NewExtractor(context.Background(), cfg, logging)
	if err != nil {
		logging.Fatal("Fact extractor creation failed", zap.Error(err))
	}
	defer extractor.Close()

	backfillService := services.NewBackfillService(cfg, store, logging)
	ingestService := services.NewIngestService(cfg, store, logging, enabledProviders)
	extractService := services.NewExtractService(cfg, store, extractor, backfillService, logging)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	setupNewsRoutes(router, cfg, ingestService, newsAPIFetcher)
	setupArticleRoutes(router, store, extractService, backfillService, logging)
	setupProcessRoutes(router, cfg, extractService)
	setupCronRoutes(router, cfg, ingestService, extractService)

	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.CronSchedule, func() {
		logging.Info("Running scheduled sweep...")
		sweep := ingestService.Sweep(context.Background(), cfg.HomeCountry)
		drain := extractService.Drain(context.Background(), cfg.DrainLimit)
		articlesFetchedCounter.Add(float64(sweep.Fetched))
		factsExtractedCounter.Add(float64(drain.Processed))
		logging.Info("Scheduled sweep completed",
			zap.Int("fetched", sweep.Fetched),
			zap.Int("processed", drain.Processed),
			zap.Int("errors", len(sweep.Errors)+len(drain.Errors)))
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func setupNewsRoutes(router *gin.Engine, cfg *config.Config, ingest *services.IngestService, search *newsapi.Fetcher) {
	rg := router.Group("/news")

	// Cache-or-Refresh-Einstieg für das UI
	rg.GET("/", func(c *gin.Context) {
		category := c.DefaultQuery("category", "general")
		country := c.DefaultQuery("country", cfg.HomeCountry)
		force := c.Query("refresh") == "true"

		if !models.ValidCategory(category) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category"})
			return
		}

		articles, cached, err := ingest.GetOrRefresh(c.Request.Context(), category, country, force)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch news"})
			return
		}
		if !cached {
			articlesFetchedCounter.Add(float64(len(articles)))
		}
		c.JSON(http.StatusOK, gin.H{"articles": articles, "cached": cached})
	})

	// Alle Rubriken eines Landes neu laden
	rg.POST("/refresh", func(c *gin.Context) {
		country := c.DefaultQuery("country", cfg.HomeCountry)
		results := ingest.RefreshAll(c.Request.Context(), country)

		total := 0
		for _, n := range results {
			total += n
		}
		articlesFetchedCounter.Add(float64(total))

		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"country":   country,
			"results":   results,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	// Freitextsuche, Ergebnisse werden nicht persistiert
	rg.GET("/search", func(c *gin.Context) {
		query := c.Query("q")
		if query == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'q' is required"})
			return
		}
		articles, err := search.Search(c.Request.Context(), query, cfg.PageSize, 1)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"articles": articles})
	})
}

func setupArticleRoutes(router *gin.Engine, store storage.Store, extract *services.ExtractService, backfill *services.BackfillService, log *zap.Logger) {
	rg := router.Group("/articles")

	rg.GET("/:id", func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		article, err := store.GetByID(id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, article)
	})

	// Backfill-then-extract für einen einzelnen Artikel
	rg.POST("/:id/extract", func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		factsText, cached, err := extract.ExtractArticle(c.Request.Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, storage.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
			case errors.Is(err, services.ErrExtractionInFlight):
				c.JSON(http.StatusConflict, gin.H{"error": "extraction already in progress"})
			default:
				log.Error("Article extraction failed", zap.Uint("id", id), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to extract facts"})
			}
			return
		}
		if !cached {
			factsExtractedCounter.Inc()
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "facts": factsText, "cached": cached})
	})

	// Nur die Volltext-Reparatur, ohne Extraktion
	rg.POST("/:id/backfill", func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		article, err := store.GetByID(id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		content, cached, err := backfill.EnsureFullContent(c.Request.Context(), article)
		if err != nil {
			// Der bisherige (gekürzte) Inhalt bleibt als Fallback erhalten.
			c.JSON(http.StatusOK, gin.H{"success": false, "content": content, "error": "could not extract article content"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "content": content, "cached": cached})
	})
}

func setupProcessRoutes(router *gin.Engine, cfg *config.Config, extract *services.ExtractService) {
	// Batch-Drain über unverarbeitete Artikel
	router.GET("/process", func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(cfg.DrainLimit)))
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		result := extract.Drain(c.Request.Context(), limit)
		factsExtractedCounter.Add(float64(result.Processed))
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"processed": result.Processed,
			"total":     result.Total,
			"errors":    result.Errors,
		})
	})
}

func setupCronRoutes(router *gin.Engine, cfg *config.Config, ingest *services.IngestService, extract *services.ExtractService) {
	// Externer Scheduler-Einstieg; der Secret-Check läuft vor jeder Arbeit.
	router.GET("/cron", func(c *gin.Context) {
		if cfg.CronSecret != "" && c.GetHeader("Authorization") != "Bearer "+cfg.CronSecret {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		sweep := ingest.Sweep(c.Request.Context(), c.DefaultQuery("country", cfg.HomeCountry))
		drain := extract.Drain(c.Request.Context(), cfg.DrainLimit)
		articlesFetchedCounter.Add(float64(sweep.Fetched))
		factsExtractedCounter.Add(float64(drain.Processed))

		errs := append(sweep.Errors, drain.Errors...)
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"fetched":   sweep.Fetched,
			"processed": drain.Processed,
			"errors":    errs,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid article id"})
		return 0, false
	}
	return uint(id), true
}
