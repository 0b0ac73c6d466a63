package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/wtcops/resyncd/internal/appconf"
	"github.com/wtcops/resyncd/internal/task"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// Submitter starts new tasks.
type Submitter interface {
	Submit(task.Kind, task.Params) (string, error)
}

type Server struct {
	conf  *appconf.ServerParams
	tasks *task.Manager
	exec  Submitter

	heartbeat time.Duration
	endDelay  time.Duration

	engine *gin.Engine
}

func NewServer(conf *appconf.ServerParams, tasks *task.Manager, exec Submitter) (*Server, error) {
	srv := Server{
		conf:  conf,
		tasks: tasks,
		exec:  exec,

		heartbeat: conf.Heartbeat(),
		endDelay:  conf.EndDelay(),
	}

	srv.engine = gin.New()

	var proxies []string

	if len(conf.TrustedProxies) > 0 {
		proxies = conf.TrustedProxies
	}

	if err := srv.engine.SetTrustedProxies(proxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxy list: %w", err)
	}

	srv.engine.Use(
		gin.CustomRecovery(recoveryHandler),
		requestLogger(),
	)

	if len(conf.APIKey) == 0 {
		log.Warn("API key is not set: all requests will be accepted")
	}
	if len(conf.AllowedIPs) == 0 {
		log.Warn("IP allowlist is not set: requests from all addresses will be accepted")
	}

	srv.registerRoutes()

	return &srv, nil
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.health)

	api := s.engine.Group("/api", ipAllowlist(s.conf.AllowedIPs), apiKeyAuth(s.conf.APIKey))
	{
		api.GET("", s.index)
		api.GET("/tasks", s.listTasks)
		api.GET("/tasks/:id/status", s.taskStatus)
		api.GET("/tasks/:id/stream", s.streamTask)
		api.POST("/tasks/:kind", s.submitTask)
	}

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse("Endpoint not found"))
	})
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve accepts connections on l until ctx is cancelled, then shuts
// the server down gracefully. Open streams are closed by the shutdown.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	httpServer := http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return httpServer.Shutdown(shutdownCtx)
	})

	group.Go(func() error {
		log.WithFields(log.Fields{"addr": l.Addr().String()}).Info("Starting HTTP server")

		if err := httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			// Error starting or closing listener
			return err
		}

		log.WithFields(log.Fields{"addr": l.Addr().String()}).Info("HTTP server stopped")

		return nil
	})

	if err := group.Wait(); err != nil {
		return fmt.Errorf("HTTP server error: %s", err)
	}

	return nil
}
