package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/retroboardhq/retroboard/internal/app"
	"github.com/retroboardhq/retroboard/internal/board"
	"github.com/retroboardhq/retroboard/internal/handlers"
	"github.com/retroboardhq/retroboard/internal/middleware"
	"github.com/retroboardhq/retroboard/internal/realtime"
	"github.com/retroboardhq/retroboard/internal/services"
)

// Deps carries the wired services the router mounts handlers onto.
type Deps struct {
	Hub          *realtime.Hub
	Engine       *board.Service
	Retros       *services.RetroService
	Items        *services.ItemService
	Participants *services.ParticipantService
	Actions      *services.ActionItemService
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(db *gorm.DB, cfg *app.Config, deps Deps) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.Hub == nil || deps.Engine == nil {
		return nil, fmt.Errorf("realtime hub and board engine must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())

	if cfg.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health())
	}
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// Websocket entry point
	realtimeHandler := handlers.NewRealtimeHandler(deps.Hub, deps.Engine, deps.Items, deps.Retros)
	r.GET("/ws", realtimeHandler.Stream)

	api := r.Group("/api")

	retroHandler := handlers.NewRetroHandler(deps.Retros, deps.Participants, deps.Engine)
	itemHandler := handlers.NewItemHandler(deps.Items, deps.Engine)
	actionHandler := handlers.NewActionItemHandler(deps.Actions, deps.Engine)

	retros := api.Group("/retros")
	{
		retros.GET("", retroHandler.List)
		retros.POST("", retroHandler.Create)
		retros.GET("/:id", retroHandler.Get)
		retros.DELETE("/:id", retroHandler.Delete)
		retros.PATCH("/:id/phase", retroHandler.UpdatePhase)
		retros.GET("/:id/participants", retroHandler.Participants)

		retros.GET("/:id/items", itemHandler.List)
		retros.POST("/:id/items", itemHandler.Create)
		retros.PATCH("/:id/items/:itemId", itemHandler.Update)
		retros.DELETE("/:id/items/:itemId", itemHandler.Delete)
		retros.GET("/:id/groups", itemHandler.Groups)

		retros.GET("/:id/action-items", actionHandler.List)
		retros.POST("/:id/action-items/commit", actionHandler.Commit)
	}

	return r, nil
}
