// Package server exposes exam generation and material ingestion over HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/examgen/internal/errs"
	"github.com/abhisek/examgen/internal/examgen"
	"github.com/abhisek/examgen/internal/ingest"
)

// DefaultMaxUploadBytes caps the size of an uploaded material file.
const DefaultMaxUploadBytes = 32 << 20

// Ingester stores an uploaded material.
type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) (ingest.Result, error)
}

// Server routes HTTP requests to the generation and ingestion pipelines.
type Server struct {
	generator examgen.Generator
	ingester  Ingester
	logger    *slog.Logger
	maxUpload int64
	engine    *gin.Engine
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) { s.maxUpload = n }
}

// New builds a Server and its routes.
func New(g examgen.Generator, ing Ingester, opts ...Option) *Server {
	s := &Server{
		generator: g,
		ingester:  ing,
		logger:    slog.Default(),
		maxUpload: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := gin.New()
	r.MaxMultipartMemory = s.maxUpload
	r.Use(gin.Recovery(), requestLogger(s.logger))

	r.GET("/health", s.health)
	r.POST("/generate_exam", s.generateExam)
	r.POST("/ingest_material", s.ingestMaterial)

	s.engine = r
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is done, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
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

	s.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

type generateRequest struct {
	MaterialID  int64  `json:"material_id"`
	Instruction string `json:"instruction"`
}

func (s *Server) generateExam(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, errs.Inputf("invalid request body: %v", err))
		return
	}

	questions, err := s.generator.Generate(c.Request.Context(), examgen.ExamRequest{
		MaterialID:  req.MaterialID,
		Instruction: req.Instruction,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rag_result": questions})
}

func (s *Server) ingestMaterial(c *gin.Context) {
	req, err := s.readUpload(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	res, err := s.ingester.Ingest(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) readUpload(c *gin.Context) (ingest.Request, error) {
	var req ingest.Request

	fh, err := c.FormFile("file")
	if err != nil {
		return req, errs.Inputf("missing file: %v", err)
	}
	if fh.Size > s.maxUpload {
		return req, errs.Inputf("file is %d bytes, limit is %d", fh.Size, s.maxUpload)
	}

	ids := []struct {
		name string
		dst  *int64
	}{
		{"material_id", &req.MaterialID},
		{"course_id", &req.CourseID},
		{"chapter_id", &req.ChapterID},
	}
	for _, id := range ids {
		name, dst := id.name, id.dst
		v := c.PostForm(name)
		if v == "" {
			return req, errs.Inputf("%s is required", name)
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return req, errs.Inputf("%s must be an integer, got %q", name, v)
		}
		*dst = n
	}

	f, err := fh.Open()
	if err != nil {
		return req, errs.Inputf("open upload: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.maxUpload+1))
	if err != nil {
		return req, errs.Inputf("read upload: %v", err)
	}
	if int64(len(data)) > s.maxUpload {
		return req, errs.Inputf("file exceeds %d bytes", s.maxUpload)
	}

	req.Filename = fh.Filename
	req.Data = data
	return req, nil
}

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Error     string     `json:"error"`
	Kind      errs.Kind  `json:"kind"`
	Stage     errs.Stage `json:"stage,omitempty"`
	Committed *int       `json:"committed,omitempty"`
}

// fail maps err to a status code: conditions the caller can correct are
// 400, everything else is 500.
func (s *Server) fail(c *gin.Context, err error) {
	body := errorBody{Error: err.Error(), Kind: "InternalError"}
	status := http.StatusInternalServerError

	if e, ok := errs.As(err); ok {
		body.Kind = e.Kind
		body.Stage = e.Stage
		if e.Kind.ClientCorrectable() {
			status = http.StatusBadRequest
		}
		if e.Kind.Category() == errs.CategoryInfrastructure && c.FullPath() == "/ingest_material" {
			committed := e.Committed
			body.Committed = &committed
		}
	}

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(c.Request.Context(), level, "request failed",
		"path", c.FullPath(), "status", status, "kind", body.Kind, "error", err)

	c.AbortWithStatusJSON(status, body)
}

// requestLogger logs one line per request through slog.
func requestLogger(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		l.LogAttrs(c.Request.Context(), level, "http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("client", c.ClientIP()),
		)
	}
}
