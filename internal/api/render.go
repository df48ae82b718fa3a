package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"captioner/internal/workflow"
)

func (s *server) handleRender(c *gin.Context) {
	if s.opts.Renderer == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Rendering unavailable"})
		return
	}
	var req workflow.RenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Details: err.Error()})
		return
	}
	result, err := s.opts.Renderer.Render(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, err, "Failed to render video")
		return
	}
	c.JSON(http.StatusOK, RenderResponse(result))
}
