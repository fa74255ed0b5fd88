package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/sceneit/apiserver/config"
	"github.com/sceneit/apiserver/internal/db"
	"github.com/sceneit/apiserver/internal/mail"
	"github.com/sceneit/apiserver/internal/mq"
	"github.com/sceneit/apiserver/internal/services"
	"github.com/sceneit/apiserver/internal/storage"
	"github.com/sceneit/apiserver/internal/store"
	"github.com/sceneit/apiserver/internal/tmdb"
	"go.mongodb.org/mongo-driver/mongo"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	mongo      *mongo.Client
	redis      *redis.Client
	queue      *mq.MQ
	cancel     context.CancelFunc
	logger     *slog.Logger
}

// New connects to the backing services and constructs a Server.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	s := &Server{logger: logger}
	ok := false
	defer func() {
		if !ok {
			s.closeResources()
		}
	}()

	client, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	s.mongo = client
	repo := store.NewUserRepository(db.Database(client, cfg).Collection(db.UsersCollection))

	var cache tmdb.Cache
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		rdb, err := tmdb.InitRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("catalog cache disabled", "addr", cfg.Redis.Addr, "error", err)
		} else {
			s.redis = rdb
			cache = tmdb.NewRedisCache(rdb, cfg.TMDB.CacheTTL, logger)
		}
	}
	catalog := tmdb.NewClient(cfg.TMDB, cache)

	avatars, err := storage.Open(ctx, cfg.Avatars)
	if err != nil {
		return nil, fmt.Errorf("open avatar storage: %w", err)
	}
	if err := avatars.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("prepare avatar storage: %w", err)
	}

	mailer, err := s.openMailer(ctx, cfg)
	if err != nil {
		return nil, err
	}

	routerCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	app := NewApp(cfg, repo, catalog, avatars, mailer, logger)
	s.router = NewRouter(routerCtx, app, cfg)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      65 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ok = true
	return s, nil
}

// openMailer delivers reset mail inline over SMTP, or through the queue
// when the mailer worker runs separately.
func (s *Server) openMailer(ctx context.Context, cfg config.Config) (services.MailSender, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Mail.Transport)) {
	case "", "smtp":
		sender, err := mail.NewSMTPSender(cfg.Mail)
		if err != nil {
			return nil, fmt.Errorf("configure smtp: %w", err)
		}
		return sender, nil
	case "queue":
		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return nil, fmt.Errorf("connect mq: %w", err)
		}
		s.queue = queue
		return mail.NewQueueSender(queue, cfg.Mail.Queue), nil
	default:
		return nil, fmt.Errorf("unknown mail transport %q", cfg.Mail.Transport)
	}
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and releases the backing connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.closeResources()
	return err
}

func (s *Server) closeResources() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.queue != nil {
		if err := s.queue.Close(); err != nil {
			s.logger.Warn("close mq", "error", err)
		}
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.mongo.Disconnect(ctx)
	}
}
