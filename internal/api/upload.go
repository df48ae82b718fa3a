package api

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"captioner/internal/logging"
	"captioner/internal/workflow"
)

const uploadField = "video"

var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)

func (s *server) handleUpload(c *gin.Context) {
	if s.opts.Captioner == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Captioning unavailable"})
		return
	}
	if err := s.opts.Captioner.Preflight(); err != nil {
		s.writeError(c, err, "Failed to process video")
		return
	}

	limit := s.opts.MaxUploadBytes
	if limit > 0 {
		if c.Request.ContentLength > limit {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
				Error:   "File too large",
				Details: fmt.Sprintf("uploads are limited to %d bytes", limit),
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}

	file, err := c.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
				Error:   "File too large",
				Details: fmt.Sprintf("uploads are limited to %d bytes", tooLarge.Limit),
			})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "No video file uploaded", Details: err.Error()})
		return
	}

	name := uploadName(s.newID(), file.Filename)
	dest := filepath.Join(s.opts.UploadDir, name)
	if err := c.SaveUploadedFile(file, dest); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to save upload", Details: err.Error()})
		return
	}
	publicPath := s.opts.UploadURL + "/" + name

	jobID := s.newID()
	logging.WithContext(c.Request.Context(), s.logger).Info("upload received",
		logging.String(logging.FieldJobID, jobID),
		logging.String("video", publicPath),
		logging.Int64("bytes", file.Size),
	)
	timeline, err := s.opts.Captioner.Run(c.Request.Context(), workflow.CaptionRequest{
		JobID:      jobID,
		VideoPath:  dest,
		PublicPath: publicPath,
	})
	if err != nil {
		s.writeError(c, err, "Failed to process video")
		return
	}
	c.JSON(http.StatusOK, UploadResponse{
		Success:   true,
		VideoPath: publicPath,
		JobID:     jobID,
		Captions:  timeline,
	})
}

// uploadName builds a collision-free file name, keeping a sane extension.
func uploadName(id, original string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(original)))
	if !extPattern.MatchString(ext) {
		return id
	}
	return id + ext
}
