package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/univhub/timetable-engine/internal/models"
	"github.com/univhub/timetable-engine/internal/service"
	"github.com/univhub/timetable-engine/pkg/config"
	appErrors "github.com/univhub/timetable-engine/pkg/errors"
	"github.com/univhub/timetable-engine/pkg/response"
)

// TemplateHandler manages template expansion endpoints.
type TemplateHandler struct {
	expander *service.ExpanderService
}

// NewTemplateHandler constructs handler.
func NewTemplateHandler(expander *service.ExpanderService) *TemplateHandler {
	return &TemplateHandler{expander: expander}
}

// expandRequest wraps a schedule template with run options.
type expandRequest struct {
	Template models.ScheduleTemplate `json:"template" binding:"required"`
	Mode     string                  `json:"mode,omitempty"`
	Replace  bool                    `json:"replace,omitempty"`
}

// Expand godoc
// @Summary Expand a schedule template into sessions
// @Tags Templates
// @Accept json
// @Produce json
// @Param payload body expandRequest true "Template and run options"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /templates/expand [post]
func (h *TemplateHandler) Expand(c *gin.Context) {
	var req expandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload").WithCause(err))
		return
	}
	mode := config.ExpansionMode(strings.ToUpper(req.Mode))
	result, err := h.expander.Expand(c.Request.Context(), req.Template, mode, req.Replace, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}
