package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"webpage-compliance/internal/compliance"
	"webpage-compliance/internal/report"
	"webpage-compliance/internal/scraper"
)

const requestIDHeader = "X-Request-ID"

// Checker runs a compliance check for a pair of URLs.
type Checker interface {
	CheckCompliance(ctx context.Context, webpageURL, policyURL string) (report.Report, error)
	Settings() compliance.Settings
}

// Config defines server dependencies.
type Config struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// Server exposes the compliance checker over HTTP.
type Server struct {
	checker        Checker
	allowedOrigins []string
	requestTimeout time.Duration
}

// NewServer constructs the API server.
func NewServer(cfg Config, checker Checker) (*Server, error) {
	if checker == nil {
		return nil, errors.New("compliance checker required")
	}
	return &Server{
		checker:        checker,
		allowedOrigins: cfg.AllowedOrigins,
		requestTimeout: cfg.RequestTimeout,
	}, nil
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowCredentials = true
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", requestIDHeader}
	corsCfg.ExposeHeaders = []string{requestIDHeader}
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	r.Use(cors.New(corsCfg))
	r.Use(requestID())

	r.GET("/api/healthz", s.handleHealth)
	r.GET("/api/config", s.handleConfig)
	r.POST("/compliance/validate", s.handleValidate)

	return r, nil
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleConfig(c *gin.Context) {
	settings := s.checker.Settings()
	c.JSON(http.StatusOK, ConfigResponse{
		Classifier:     settings.Classifier,
		BatchSize:      settings.BatchSize,
		MaxAttempts:    settings.MaxAttempts,
		PageCache:      settings.PageCache,
		RequestTimeout: s.requestTimeout.String(),
	})
}

func (s *Server) handleValidate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if err := req.Validate(); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) && len(verr.Messages) > 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: verr.Messages[0], Messages: verr.Messages})
			return
		}
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	ctx := c.Request.Context()
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	log := logrus.WithFields(logrus.Fields{
		"request_id":  c.GetString("request_id"),
		"webpage_url": req.WebpageURL,
		"policy_url":  req.PolicyURL,
	})
	start := time.Now()
	result, err := s.checker.CheckCompliance(ctx, req.WebpageURL, req.PolicyURL)
	if err != nil {
		status := statusFor(err)
		log.WithError(err).WithField("status", status).Warn("compliance check failed")
		s.renderError(c, status, err)
		return
	}
	log.WithFields(logrus.Fields{
		"sentences": result.Summary.Total,
		"duration":  time.Since(start).Round(time.Millisecond),
	}).Info("compliance check complete")
	c.JSON(http.StatusOK, result)
}

// statusFor maps pipeline errors onto HTTP status codes.
func statusFor(err error) int {
	var fetchErr *scraper.FetchError
	var classifierErr *compliance.ClassifierError
	switch {
	case errors.As(err, &fetchErr):
		return http.StatusBadRequest
	case errors.As(err, &classifierErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return 499
	}
	// contract violations and anything unexpected
	return http.StatusInternalServerError
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, ErrorResponse{Error: err.Error()})
}
