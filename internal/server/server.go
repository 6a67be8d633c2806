// Package server exposes the matcher over HTTP with gin.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"point-matcher/internal/config"
	"point-matcher/internal/jobs"
)

type Server struct {
	cfg  *config.Config
	log  *logrus.Logger
	jobs *jobs.Store
}

func New(cfg *config.Config, log *logrus.Logger) *Server {
	return &Server{
		cfg:  cfg,
		log:  log,
		jobs: jobs.NewStore(),
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	store := cookie.NewStore([]byte(s.cfg.SessionSecret))
	r.Use(sessions.Sessions("pointmatcher", store))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/login", s.login)
	r.GET("/logout", s.logout)

	authorized := r.Group("/")
	authorized.Use(s.authRequired)
	{
		authorized.POST("/api/match", s.match)
		authorized.POST("/run", s.run)
		authorized.GET("/logs", s.jobLogs)
		authorized.GET("/status", s.jobStatus)
		authorized.POST("/cancel", s.cancelJob)
		authorized.GET("/download-result/:filename", s.download)
	}
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		}).Debug("request")
	}
}

func (s *Server) authRequired(c *gin.Context) {
	if !s.cfg.AuthEnabled() {
		c.Next()
		return
	}
	session := sessions.Default(c)
	if session.Get("user") == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "login required"})
		return
	}
	c.Next()
}

func (s *Server) login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	if !s.cfg.AuthEnabled() || username != s.cfg.LoginUser || password != s.cfg.LoginPass {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "invalid username or password"})
		return
	}

	session := sessions.Default(c)
	session.Set("user", username)
	if err := session.Save(); err != nil {
		s.log.WithError(err).Error("save session")
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "session error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		s.log.WithError(err).Warn("clear session")
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// jobRetention is how long finished jobs stay visible to /status and /logs.
const jobRetention = 24 * time.Hour

const shutdownTimeout = 10 * time.Second

// GinMode keeps gin's route dump for debug logging only.
func GinMode(logLevel string) string {
	if logLevel == "debug" || logLevel == "trace" {
		return gin.DebugMode
	}
	return gin.ReleaseMode
}

func (s *Server) pruneJobs(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.jobs.Prune(time.Now().Add(-jobRetention)); n > 0 {
				s.log.WithFields(logrus.Fields{"jobs": n, "remaining": s.jobs.Len()}).Debug("pruned finished jobs")
			}
		}
	}
}

// Run serves on cfg.Port until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	go s.pruneJobs(ctx)

	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("port", s.cfg.Port).Info("point matcher server running")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
