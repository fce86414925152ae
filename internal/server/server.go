// Package server exposes the detection pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hed1ad/wqguard/pkg/io/csv"
	"github.com/hed1ad/wqguard/pkg/pipeline"
	"github.com/hed1ad/wqguard/pkg/registry"
	"github.com/hed1ad/wqguard/pkg/water"
)

// UploadField is the multipart form field carrying the CSV file.
const UploadField = "file"

// Catalog describes the loaded models.
type Catalog interface {
	Variant() water.Variant
	Artifacts() []registry.Artifact
}

// Options configure a Server.
type Options struct {
	// CORSOrigins is a comma separated list; "*" allows any origin.
	CORSOrigins string
	MaxUploadMB int
	Gatherer    prometheus.Gatherer
	Logger      *log.Logger
}

type Server struct {
	pipeline  *pipeline.Pipeline
	catalog   Catalog
	maxUpload int64
	logger    *log.Logger
	router    *gin.Engine
}

// New builds the router. A nil Gatherer disables /metrics.
func New(p *pipeline.Pipeline, catalog Catalog, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = 32
	}
	s := &Server{
		pipeline:  p,
		catalog:   catalog,
		maxUpload: int64(opts.MaxUploadMB) << 20,
		logger:    opts.Logger,
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests(), setupCORS(opts.CORSOrigins))

	r.GET("/health", s.health)
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api/v1")
	api.POST("/preview", s.preview)
	api.POST("/detect", s.detect)
	api.GET("/models", s.models)

	s.router = r
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func setupCORS(origins string) gin.HandlerFunc {
	allowed := strings.Split(origins, ",")
	for i := range allowed {
		allowed[i] = strings.TrimSpace(allowed[i])
	}

	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if origins == "" || (len(allowed) == 1 && allowed[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowed
	}
	return cors.New(cfg)
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Printf("%s %s %d (%s)", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start).Round(time.Microsecond))
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "UP",
		"variant": s.catalog.Variant(),
	})
}

func (s *Server) models(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"variant":   s.catalog.Variant(),
		"artifacts": s.catalog.Artifacts(),
	})
}

func (s *Server) preview(c *gin.Context) {
	raw, ok := s.readUpload(c)
	if !ok {
		return
	}
	pv, err := s.pipeline.Preview(raw)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"variant": s.pipeline.Variant(),
		"preview": pv,
	})
}

func (s *Server) detect(c *gin.Context) {
	raw, ok := s.readUpload(c)
	if !ok {
		return
	}
	res, err := s.pipeline.Run(c.Request.Context(), raw)
	if err != nil {
		s.fail(c, err)
		return
	}
	// Encode before writing so an unencodable result is still a 500, not an
	// empty 200.
	b, err := json.Marshal(res)
	if err != nil {
		s.fail(c, fmt.Errorf("encode result of run %s: %w", res.RunID, err))
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", b)
}

// readUpload parses the multipart file. On failure it has already written a
// 413 or 400 response.
func (s *Server) readUpload(c *gin.Context) (water.RawTable, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)

	fh, err := c.FormFile(UploadField)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":    fmt.Sprintf("upload exceeds the %d MB limit", s.maxUpload>>20),
			"limit_mb": s.maxUpload >> 20,
		})
		return water.RawTable{}, false
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("multipart field %q is required: %v", UploadField, err)})
		return water.RawTable{}, false
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("open upload: %v", err)})
		return water.RawTable{}, false
	}
	defer f.Close()

	raw, err := csv.NewReader(f).ReadTable()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("read %s: %v", fh.Filename, err)})
		return water.RawTable{}, false
	}
	return raw, true
}

// fail maps pipeline errors to responses. Input problems are 422 so the
// client can show which columns or rows to fix.
func (s *Server) fail(c *gin.Context, err error) {
	var (
		mce *water.MissingColumnsError
		iie *water.InvalidInputError
	)
	switch {
	case errors.As(err, &mce):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":    err.Error(),
			"missing":  mce.Missing,
			"required": mce.Required,
		})
	case errors.As(err, &iie):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":     err.Error(),
			"parameter": iie.Parameter,
			"rows":      iie.Rows,
		})
	case errors.Is(err, water.ErrEmptyTable):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		s.logger.Printf("request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "detection failed"})
	}
}
