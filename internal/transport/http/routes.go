package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Freeeeeet/lab_reservations/internal/model"
	"github.com/Freeeeeet/lab_reservations/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ReservationAPI операции движка, доступные по HTTP
type ReservationAPI interface {
	RequestReservation(ctx context.Context, in service.RequestInput) (*model.Reservation, error)
	ApproveReservation(ctx context.Context, id uuid.UUID, actorID int64) error
	RejectReservation(ctx context.Context, id uuid.UUID, actorID int64) error
	CancelReservation(ctx context.Context, id uuid.UUID, actorID int64) error
	GetReservation(ctx context.Context, id uuid.UUID) (*model.Reservation, error)
	ListByRequester(ctx context.Context, requesterID int64) ([]*model.Reservation, error)
	ListWaitlist(ctx context.Context, resourceID int64) ([]*model.Reservation, error)
}

// HealthChecker проверка зависимостей для /healthz
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// NewRouter собирает gin engine со всеми маршрутами
func NewRouter(api ReservationAPI, health HealthChecker, gatherer prometheus.Gatherer, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	h := NewHandler(api, logger)

	r.GET("/healthz", healthHandler(health))
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/v1")
	{
		v1.POST("/reservations", h.RequestReservation)
		v1.GET("/reservations/:id", h.GetReservation)
		v1.POST("/reservations/:id/approve", h.ApproveReservation)
		v1.POST("/reservations/:id/reject", h.RejectReservation)
		v1.POST("/reservations/:id/cancel", h.CancelReservation)
		v1.GET("/resources/:id/waitlist", h.ListWaitlist)
		v1.GET("/users/:id/reservations", h.ListByRequester)
	}

	return r
}

// Server HTTP-сервер с корректной остановкой
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

func NewServer(addr string, handler http.Handler, logger *zap.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Run слушает до отмены ctx, затем даёт запросам завершиться
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.srv.Addr))
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func healthHandler(health HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := health.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
