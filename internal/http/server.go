package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/guriuo/hiigsitech/internal/config"
	"github.com/guriuo/hiigsitech/internal/logger"
	"github.com/guriuo/hiigsitech/internal/services"
	"github.com/guriuo/hiigsitech/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// ContentSource is the document store behind courses, comments and
// contact submissions.
type ContentSource interface {
	services.CourseSource
	services.CommentBackend
	services.ContactBackend
}

type Server struct {
	engine  *gin.Engine
	cfg     config.Config
	log     *logger.Logger
	closers []io.Closer
}

func NewServer(ctx context.Context, cfg config.Config, log *logger.Logger) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)
	srv := &Server{cfg: cfg, log: log}

	fm, err := storage.NewFileManager(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("init file manager: %w", err)
	}

	content, err := openContent(cfg)
	if err != nil {
		return nil, err
	}

	kv, err := srv.openProgressStore(ctx)
	if err != nil {
		return nil, err
	}

	var comments services.CommentBackend = content
	var contacts services.ContactBackend = content
	if cfg.CommentBackend == config.CommentBackendSQL {
		db, err := storage.OpenDatabase(cfg.DatabaseDriver, cfg.DatabaseDSN, log)
		if err != nil {
			return nil, err
		}
		if err := storage.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		backend := services.NewSQLBackend(storage.NewCommentRepo(db, log), storage.NewContactRepo(db, log))
		comments, contacts = backend, backend
	}

	api := NewAPI(
		fm,
		services.NewLearningService(content, kv, log),
		services.NewCommentService(comments, log),
		services.NewContactService(contacts, log),
		services.NewPDFService(),
		services.NewShareService(cfg),
		log,
	)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger(log))
	engine.Use(MaxBodySize(cfg.MaxBodyBytes))
	engine.Use(CORS(cfg.AllowedOrigins))

	registerRoutes(engine, api)
	srv.engine = engine

	log.Info("server configured",
		"contentFixtures", cfg.ContentFixtures,
		"progressBackend", cfg.ProgressBackend,
		"commentBackend", cfg.CommentBackend,
	)
	return srv, nil
}

func openContent(cfg config.Config) (ContentSource, error) {
	if cfg.UsesHostedContent() {
		if cfg.ContentProjectID == "" {
			return nil, fmt.Errorf("CONTENT_PROJECT_ID or CONTENT_FIXTURES must be set")
		}
		return services.NewContentClient(cfg), nil
	}
	src, err := services.LoadFixtures(cfg.ContentFixtures)
	if err != nil {
		return nil, fmt.Errorf("load content fixtures: %w", err)
	}
	return src, nil
}

func (s *Server) openProgressStore(ctx context.Context) (storage.KV, error) {
	if s.cfg.ProgressBackend == config.ProgressBackendRedis {
		kv, err := storage.NewRedisKV(ctx, s.cfg.RedisAddr, s.cfg.RedisPrefix)
		if err != nil {
			return nil, fmt.Errorf("init redis progress store: %w", err)
		}
		s.closers = append(s.closers, kv)
		return kv, nil
	}

	store, err := storage.NewStore(s.cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	return store, nil
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.cfg.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", httpSrv.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.log.Info("shutting down")
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) Close() {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.log.Warn("close failed", "error", err)
		}
	}
}
