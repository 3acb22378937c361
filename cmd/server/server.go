package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"

	"github.com/thereayou/whisper/internal/cache"
	"github.com/thereayou/whisper/internal/config"
	"github.com/thereayou/whisper/internal/database"
	"github.com/thereayou/whisper/internal/handlers"
	"github.com/thereayou/whisper/internal/services"
	ws "github.com/thereayou/whisper/internal/websocket"
	"github.com/thereayou/whisper/pkg/auth"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	Config     *config.Config
	Router     *gin.Engine
	DB         *database.Database
	Redis      *redis.Client
	Hub        *ws.Hub
	JWTManager *auth.JWTManager

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer opens the database and, when configured, redis, then wires the
// application.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database connect failed: %w", err)
	}
	if err := db.Migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("redis connect failed: %w", err)
		}
	} else {
		slog.Warn("REDIS_URL not set, token revocation is local to this process")
	}

	return New(cfg, db, rdb), nil
}

// New wires services, handlers and routes on top of open connections.
// rdb may be nil.
func New(cfg *config.Config, db *database.Database, rdb *redis.Client) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	var blacklist services.TokenBlacklist = cache.NewMemoryBlacklist()
	if rdb != nil {
		blacklist = cache.NewRedisBlacklist(rdb)
	}

	hub := ws.NewHub()
	if rdb != nil && cfg.RedisFanout {
		hub.SetBroker(ws.NewRedisBroker(rdb, ws.DefaultBrokerChannel, hub.ID))
	}

	authService := services.NewAuthService(db, jwtMgr, blacklist)
	relationships := services.NewRelationshipService(db, hub)
	chats := services.NewChatService(db, hub)
	users := services.NewUserService(db, relationships)

	h := routeHandlers{
		auth:      handlers.NewAuthHandler(authService),
		users:     handlers.NewUserHandler(authService, users, relationships),
		chats:     handlers.NewChatHandler(chats, relationships, hub),
		websocket: handlers.NewWebSocketHandler(ctx, hub, handlers.NewSocketEventHandler(chats, hub), cfg.WSEventsPerSec, cfg.WSEventBurst, cfg.CORSOrigin),
		resolver:  authService,
	}

	router := gin.Default()
	APIEndpoints(router, cfg, h)

	return &Server{
		Config:     cfg,
		Router:     router,
		DB:         db,
		Redis:      rdb,
		Hub:        hub,
		JWTManager: jwtMgr,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run serves HTTP and the hub until ctx is done, then shuts both down.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.Config.Port,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server starting", "port", s.Config.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server run error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return s.Hub.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("server shutting down")
		s.cancel()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	s.Close()
	return err
}

// Close releases the connections held by the server.
func (s *Server) Close() {
	s.cancel()
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			slog.Warn("redis close failed", "error", err)
		}
	}
	if err := s.DB.Close(); err != nil {
		slog.Warn("database close failed", "error", err)
	}
}
