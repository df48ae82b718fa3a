package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"captioner/internal/captions"
	"captioner/internal/logging"
	"captioner/internal/preflight"
	"captioner/internal/services"
	"captioner/internal/workflow"
)

// Renderer runs render jobs to completion.
type Renderer interface {
	Render(ctx context.Context, req workflow.RenderRequest) (workflow.RenderResult, error)
}

// Captioner turns an uploaded video into captions.
type Captioner interface {
	Preflight() error
	Run(ctx context.Context, req workflow.CaptionRequest) (captions.Timeline, error)
}

// ProgressReader reads job progress.
type ProgressReader interface {
	Read(ctx context.Context, jobID string) float64
}

// SetupChecker produces the readiness report.
type SetupChecker func(ctx context.Context) preflight.SetupReport

// Options wires the router to its collaborators.
type Options struct {
	Renderer  Renderer
	Captioner Captioner
	Progress  ProgressReader
	Setup     SetupChecker

	UploadDir string
	RenderDir string
	// UploadURL and RenderURL are the public paths the directories are
	// served under. They default to "/uploads" and "/renders".
	UploadURL      string
	RenderURL      string
	MaxUploadBytes int64
	Logger         *slog.Logger
}

type server struct {
	opts   Options
	logger *slog.Logger
	newID  func() string
}

// NewRouter constructs a gin engine with every captioner route registered.
func NewRouter(opts Options) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	opts.UploadURL = mountPath(opts.UploadURL, "/uploads")
	opts.RenderURL = mountPath(opts.RenderURL, "/renders")
	s := &server{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "api"),
		newID:  uuid.NewString,
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery(), s.requestLogger())
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, ErrorResponse{Error: "Method not allowed"})
	})
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Not found"})
	})

	group := r.Group("/api")
	group.POST("/upload", s.handleUpload)
	group.POST("/render", s.handleRender)
	group.GET("/render-progress", s.handleProgress)
	group.GET("/check-setup", s.handleCheckSetup)

	if opts.UploadDir != "" {
		r.Static(opts.UploadURL, opts.UploadDir)
	}
	if opts.RenderDir != "" {
		r.Static(opts.RenderURL, opts.RenderDir)
	}
	return r
}

func mountPath(value, fallback string) string {
	value = strings.TrimRight(strings.TrimSpace(value), "/")
	if value == "" {
		return fallback
	}
	if !strings.HasPrefix(value, "/") {
		value = "/" + value
	}
	return value
}

// requestLogger tags each request with an id and logs its outcome.
func (s *server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = s.newID()
		}
		c.Header("X-Request-ID", requestID)
		c.Request = c.Request.WithContext(services.WithRequestID(c.Request.Context(), requestID))

		start := time.Now()
		c.Next()

		logger := logging.WithContext(c.Request.Context(), s.logger)
		attrs := []logging.Attr{
			logging.String("method", c.Request.Method),
			logging.String("path", c.FullPath()),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("duration", time.Since(start)),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logging.WarnWithContext(logger, "request failed", "api_request_failed",
				append(attrs,
					logging.String(logging.FieldErrorHint, "inspect the job's stage logs for the failing step"),
					logging.String(logging.FieldImpact, "the request returned an error to the client"),
				)...)
			return
		}
		logger.LogAttrs(c.Request.Context(), slog.LevelDebug, "request served", attrs...)
	}
}

func (s *server) handleProgress(c *gin.Context) {
	if s.opts.Progress == nil {
		c.JSON(http.StatusOK, ProgressResponse{})
		return
	}
	value := s.opts.Progress.Read(c.Request.Context(), c.Query("job"))
	c.JSON(http.StatusOK, ProgressResponse{Progress: value})
}

func (s *server) handleCheckSetup(c *gin.Context) {
	if s.opts.Setup == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Setup check unavailable"})
		return
	}
	c.JSON(http.StatusOK, s.opts.Setup(c.Request.Context()))
}

func (s *server) writeError(c *gin.Context, err error, fallback string) {
	status, body := FromError(err, fallback)
	c.JSON(status, body)
}
