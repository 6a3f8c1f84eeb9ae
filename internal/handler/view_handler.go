package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/univhub/timetable-engine/internal/models"
	"github.com/univhub/timetable-engine/internal/service"
	"github.com/univhub/timetable-engine/pkg/config"
	appErrors "github.com/univhub/timetable-engine/pkg/errors"
	"github.com/univhub/timetable-engine/pkg/export"
	"github.com/univhub/timetable-engine/pkg/response"
	"github.com/univhub/timetable-engine/pkg/timeutil"
)

// ViewHandler serves weekly projections and their exports.
type ViewHandler struct {
	views *service.ViewService
	authz *service.AuthzService
	csv   *export.CSVExporter
	pdf   *export.PDFExporter
	cfg   config.EngineConfig
}

// NewViewHandler constructs handler.
func NewViewHandler(views *service.ViewService, authz *service.AuthzService, cfg config.EngineConfig) *ViewHandler {
	return &ViewHandler{
		views: views,
		authz: authz,
		csv:   export.NewCSVExporter(),
		pdf:   export.NewPDFExporter(),
		cfg:   cfg,
	}
}

// Weekly godoc
// @Summary Weekly timetable view for an actor
// @Tags Views
// @Produce json
// @Param actorKind path string true "student|teacher|room|group|department"
// @Param actorID path string true "Actor ID"
// @Param week query string false "ISO week YYYY-Www, defaults to current"
// @Param grid query string false "free|fixed"
// @Param historical query string false "Include COMPLETED sessions"
// @Success 200 {object} response.Envelope
// @Router /views/{actorKind}/{actorID} [get]
func (h *ViewHandler) Weekly(c *gin.Context) {
	view, err := h.project(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Export godoc
// @Summary Export a weekly view as CSV or PDF
// @Tags Views
// @Produce octet-stream
// @Param actorKind path string true "student|teacher|room|group|department"
// @Param actorID path string true "Actor ID"
// @Param week query string false "ISO week YYYY-Www, defaults to current"
// @Param format query string true "csv|pdf"
// @Success 200 {file} binary
// @Router /views/{actorKind}/{actorID}/export [get]
func (h *ViewHandler) Export(c *gin.Context) {
	view, err := h.project(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	dataset := h.views.Dataset(view)
	filename := fmt.Sprintf("timetable-%s-%s-%s", view.ActorKind, view.ActorID, view.Week)

	switch c.DefaultQuery("format", "csv") {
	case "csv":
		payload, err := h.csv.Render(dataset)
		if err != nil {
			response.Error(c, appErrors.ErrInternal.WithCause(err))
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", filename))
		c.Data(http.StatusOK, "text/csv", payload)
	case "pdf":
		title := fmt.Sprintf("Timetable %s %s - week %s", view.ActorKind, view.ActorID, view.Week)
		payload, err := h.pdf.Render(dataset, title)
		if err != nil {
			response.Error(c, appErrors.ErrInternal.WithCause(err))
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.pdf", filename))
		c.Data(http.StatusOK, "application/pdf", payload)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
	}
}

func (h *ViewHandler) project(c *gin.Context) (*models.WeeklyView, error) {
	kind := models.ActorKind(c.Param("actorKind"))
	actorID := c.Param("actorID")
	if err := h.guardScope(c, kind, actorID); err != nil {
		return nil, err
	}

	weekStart := time.Now().In(h.cfg.Location)
	if raw := c.Query("week"); raw != "" {
		parsed, err := timeutil.ParseISOWeek(raw, h.cfg.Location)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
		weekStart = parsed
	}

	opts := service.ViewOptions{
		Grid:             models.ViewGrid(c.DefaultQuery("grid", string(models.GridFree))),
		IncludeCompleted: c.Query("historical") != "",
	}
	return h.views.Weekly(c.Request.Context(), kind, actorID, weekStart, opts)
}

// guardScope keeps every role inside its own projection; the policy lives in
// the authorization gate.
func (h *ViewHandler) guardScope(c *gin.Context, kind models.ActorKind, actorID string) error {
	return h.authz.MayView(c.Request.Context(), actorFromContext(c), kind, actorID)
}
