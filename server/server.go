// Package server exposes the collection over a local JSON HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	Engine *gin.Engine
	log    *zap.SugaredLogger
}

func NewServer(h *Handler, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Server{Engine: NewRouter(h, log), log: log}
}

// Run serves on address until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, address string) error {
	srv := &http.Server{Addr: address, Handler: s.Engine}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("HTTP API listening", zap.String("addr", address))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.log.Info("Shutting down HTTP API")
	return srv.Shutdown(shutdownCtx)
}

func NewRouter(h *Handler, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))

	r.GET("/healthcheck", h.HealthCheck)

	api := r.Group("/api")
	{
		api.GET("/data", h.GetData)
		api.POST("/save", h.SaveData)
		api.GET("/search", h.Search)
		api.GET("/project/:slug", h.ProjectMetadata)
		api.POST("/check_version", h.CheckVersion)

		api.POST("/versions", h.AddVersion)
		api.DELETE("/versions/:index", h.RemoveVersion)

		api.POST("/categories", h.AddCategory)
		api.PATCH("/categories/:index", h.UpdateCategory)
		api.DELETE("/categories/:index", h.DeleteCategory)
		api.POST("/categories/:index/mods", h.AddMod)
		api.DELETE("/categories/:index/mods/:slug", h.RemoveMod)
		api.GET("/categories/:index/export", h.ExportLinks)

		api.POST("/mods/move", h.MoveMod)
		api.POST("/mods/:slug/check", h.CheckMod)

		api.POST("/check_all", h.StartCheckAll)
		api.GET("/check_all/progress", h.CheckAllProgress)
	}
	return r
}

func requestLogger(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Infow("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}
