package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/contractline/backend/internal/config"
	"github.com/contractline/backend/internal/db"
	"github.com/contractline/backend/internal/extract"
	"github.com/contractline/backend/internal/http/handlers"
	"github.com/contractline/backend/internal/http/middleware"
	"github.com/contractline/backend/internal/service"

	_ "github.com/contractline/backend/docs"
)

func Router(cfg config.Config, store *db.Store, extractor extract.Extractor, turns *service.TurnService, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.AdminKeyHeader, middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:     store,
		Turns:     turns,
		Extractor: extractor,
		Validator: validator.New(),
		Logger:    logger,
	}

	r.GET("/healthz", h.Healthz)
	r.POST("/webhook/voice", h.Webhook)

	api := r.Group("/api")
	{
		api.GET("/callers", h.CallersList)
		api.GET("/calls/:sid/state", h.CallState)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/directory/bootstrap", h.Bootstrap)
		admin.POST("/debug/compliance", h.DebugCompliance)
		admin.POST("/debug/extract", h.DebugExtract)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
