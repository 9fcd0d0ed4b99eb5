// Package app wires configuration, storage, the catalog client and the
// HTTP and gRPC surfaces into one process.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/TETRIX8/anime/internal/auth"
	"github.com/TETRIX8/anime/internal/catalog"
	"github.com/TETRIX8/anime/internal/config"
	"github.com/TETRIX8/anime/internal/favorites"
	"github.com/TETRIX8/anime/internal/grpcserver"
	"github.com/TETRIX8/anime/internal/history"
	"github.com/TETRIX8/anime/internal/kodik"
	"github.com/TETRIX8/anime/internal/logger"
	"github.com/TETRIX8/anime/internal/metrics"
	"github.com/TETRIX8/anime/internal/sync"
	"github.com/TETRIX8/anime/pkg/database"
)

type Container struct {
	Config    *config.Config
	Logger    *logrus.Logger
	DB        *database.DB
	Catalog   *catalog.Service
	Hub       *sync.Hub
	Tokens    auth.TokenService
	Users     *auth.Repo
	History   *history.Repo
	Favorites *favorites.Repo
	Guard     auth.Guard
}

// New opens the database, applies the schema and builds every service.
// The caller owns Close.
func New(cfg *config.Config, log *logrus.Logger) (*Container, error) {
	db, err := database.Open(database.Config{
		Driver: cfg.Database.Driver,
		Path:   cfg.Database.Path,
		DSN:    cfg.Database.DSN,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	log.WithField("driver", db.Driver).Info("database ready")

	client := kodik.NewClient(kodik.Config{
		BaseURL:       cfg.Kodik.BaseURL,
		Token:         cfg.Kodik.Token,
		Timeout:       cfg.Kodik.Timeout,
		RatePerSecond: cfg.Kodik.RatePerSecond,
		Burst:         cfg.Kodik.Burst,
	}, log)

	return &Container{
		Config:  cfg,
		Logger:  log,
		DB:      db,
		Catalog: catalog.NewService(client, log),
		Hub:     sync.NewHub(log),
		Tokens: auth.TokenService{
			Secret:   []byte(cfg.Auth.JWTSecret),
			Issuer:   cfg.Auth.JWTIssuer,
			Duration: cfg.Auth.JWTTTL,
		},
		Users:     auth.NewRepo(db),
		History:   history.NewRepo(db),
		Favorites: favorites.NewRepo(db),
		Guard:     auth.Guard{Required: cfg.Auth.Required},
	}, nil
}

func (c *Container) Close() {
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.Logger.WithError(err).Warn("database close failed")
			return
		}
		c.Logger.Info("database connection closed")
	}
}

func (c *Container) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logger.GinMiddleware(c.Logger), metrics.GinMiddleware(), corsMiddleware(c.Config.Server.CORSOrigins))
	_ = r.SetTrustedProxies([]string{"127.0.0.1"})

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", c.ready)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/ws", auth.Optional(c.Tokens, c.Users), sync.WSHandler(c.Hub, c.Guard.Allow))

	api := r.Group("/api")
	api.Use(auth.Optional(c.Tokens, c.Users))
	api.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"message": "Anime Wave API"})
	})

	catalog.NewHandler(c.Catalog, c.Logger).RegisterRoutes(api.Group("/anime"))
	history.NewHandler(c.History, c.Hub, c.Guard, c.Logger).RegisterRoutes(api.Group("/history"))
	favorites.NewHandler(c.Favorites, c.Hub, c.Guard, c.Logger).RegisterRoutes(api.Group("/favorites"))
	auth.NewHandler(c.Users, c.Tokens, c.Logger).RegisterRoutes(api.Group("/auth"))

	return r
}

func (c *Container) GRPCServer() *grpc.Server {
	return grpcserver.New(c.Catalog, c.Logger)
}

func (c *Container) ready(ctx *gin.Context) {
	stats := c.Hub.Stats()
	pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	if err := c.DB.PingContext(pingCtx); err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "not_ready",
			"db_error": err.Error(),
		})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"status":           "ready",
		"db":               "ok",
		"feed_users":       stats.Users,
		"feed_connections": stats.Connections,
	})
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	all := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			all = true
		}
	}
	if all {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}
