package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"dbmlviewer/internal/config"
	"dbmlviewer/internal/database"
	"dbmlviewer/internal/editor"
	"dbmlviewer/internal/handlers"
	"dbmlviewer/internal/repositories"
	"dbmlviewer/internal/routes"
	"dbmlviewer/internal/services"
	"dbmlviewer/internal/utils"
)

// Deps are the storage backends of the API.
type Deps struct {
	Diagrams services.DiagramRepository
	Users    services.UserRepository
	Sessions services.SessionStore
}

// NewServer connects Postgres and Redis, runs migrations and returns the
// configured HTTP server. The returned func releases the connections.
func NewServer(ctx context.Context, cfg *config.Config) (*http.Server, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	if err := database.EnsureDatabaseExists(ctx, cfg); err != nil {
		return nil, nil, err
	}
	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := database.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})

	// Fail fast with a clear message
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr, err)
	}
	log.Println("Connected to Redis successfully")

	router := NewRouter(cfg, Deps{
		Diagrams: repositories.NewDiagramRepository(pool),
		Users:    repositories.NewUserRepository(pool),
		Sessions: repositories.NewRedisRepository(rdb),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	cleanup := func() {
		if err := rdb.Close(); err != nil {
			log.Printf("Redis close: %v", err)
		}
		database.Close(pool)
	}
	return server, cleanup, nil
}

// NewRouter wires services and handlers over deps.
func NewRouter(cfg *config.Config, deps Deps) *gin.Engine {
	opts := editor.DefaultOptions()
	if cfg.LayoutDirection != "" {
		opts.Layout.Direction = cfg.LayoutDirection
	}

	schemaService := services.NewSchemaService(services.NewPipeline(opts))
	diagramService := services.NewDiagramService(deps.Diagrams, schemaService)
	authService := services.NewAuthService(deps.Users, deps.Sessions, utils.Secrets{
		Access:  []byte(cfg.AccessTokenSecret),
		Refresh: []byte(cfg.RefreshTokenSecret),
	})

	authHandler := handlers.NewAuthHandler(authService, cfg.SecureCookies)
	diagramHandler := handlers.NewDiagramHandler(diagramService)
	schemaHandler := handlers.NewSchemaHandler(schemaService)

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(router, authService, authHandler, diagramHandler, schemaHandler)
	return router
}
