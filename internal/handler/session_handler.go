package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/univhub/timetable-engine/internal/models"
	"github.com/univhub/timetable-engine/internal/service"
	appErrors "github.com/univhub/timetable-engine/pkg/errors"
	"github.com/univhub/timetable-engine/pkg/response"
)

// SessionStore is the repository surface the read endpoints use.
type SessionStore interface {
	Get(ctx context.Context, id string) (*models.Session, error)
	List(ctx context.Context, q models.SessionQuery) ([]models.Session, int, error)
}

// SessionHandler manages session lifecycle endpoints.
type SessionHandler struct {
	lifecycle *service.LifecycleService
	makeup    *service.MakeupService
	authz     *service.AuthzService
	reads     SessionStore
}

// NewSessionHandler constructs handler.
func NewSessionHandler(lifecycle *service.LifecycleService, makeup *service.MakeupService, authz *service.AuthzService, reads SessionStore) *SessionHandler {
	return &SessionHandler{lifecycle: lifecycle, makeup: makeup, authz: authz, reads: reads}
}

// cancelRequest carries the mandatory cancellation reason.
type cancelRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// makeupRequest carries candidate replacement slots.
type makeupRequest struct {
	Slots []service.MakeupSlot `json:"slots" binding:"required,min=1,dive"`
}

// Create godoc
// @Summary Create a session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body models.SessionCandidate true "Session candidate"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	var candidate models.SessionCandidate
	if err := c.ShouldBindJSON(&candidate); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload").WithCause(err))
		return
	}
	session, err := h.lifecycle.CreateSession(c.Request.Context(), candidate, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// Get godoc
// @Summary Fetch a single session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	id := c.Param("id")
	session, err := h.reads.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			response.Error(c, appErrors.Clone(appErrors.ErrSessionGone, fmt.Sprintf("session %s not found", id)))
			return
		}
		response.Error(c, appErrors.ErrStoreFailure.WithCause(err))
		return
	}
	if err := h.authz.May(c.Request.Context(), actorFromContext(c), session, models.OpRead); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// List godoc
// @Summary List sessions along one query axis
// @Tags Sessions
// @Produce json
// @Param room query string false "Room ID"
// @Param teacher query string false "Teacher ID"
// @Param group query string false "Group ID"
// @Param department query string false "Department ID"
// @Param specialty query string false "Specialty ID"
// @Param level query string false "Level ID"
// @Param from query string false "Start date YYYY-MM-DD"
// @Param to query string false "End date YYYY-MM-DD"
// @Param status query string false "Comma-separated statuses"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	query, err := buildSessionQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.authz.MayQuery(c.Request.Context(), actorFromContext(c), query); err != nil {
		response.Error(c, err)
		return
	}
	sessions, total, err := h.reads.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, appErrors.ErrStoreFailure.WithCause(err))
		return
	}
	response.JSON(c, http.StatusOK, sessions, &models.Pagination{
		Page:       query.Page,
		PageSize:   query.PageSize,
		TotalCount: total,
	})
}

// Reschedule godoc
// @Summary Move a planned session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body models.SessionPatch true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id} [patch]
func (h *SessionHandler) Reschedule(c *gin.Context) {
	var patch models.SessionPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload").WithCause(err))
		return
	}
	if patch.Date == nil && patch.StartTime == nil && patch.EndTime == nil && patch.RoomID == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "patch must change at least one field"))
		return
	}
	session, err := h.lifecycle.Reschedule(c.Request.Context(), c.Param("id"), patch, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Cancel godoc
// @Summary Cancel a session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body cancelRequest true "Cancellation reason"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/cancel [post]
func (h *SessionHandler) Cancel(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "a cancellation reason is required").WithCause(err))
		return
	}
	session, err := h.lifecycle.Cancel(c.Request.Context(), c.Param("id"), req.Reason, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Makeup godoc
// @Summary Schedule a makeup for a cancelled session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Cancelled session ID"
// @Param payload body makeupRequest true "Candidate slots"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/makeup [post]
func (h *SessionHandler) Makeup(c *gin.Context) {
	var req makeupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload").WithCause(err))
		return
	}
	session, reports, err := h.makeup.Schedule(c.Request.Context(), c.Param("id"), req.Slots, actorFromContext(c))
	if err != nil {
		appErr := appErrors.FromError(err)
		if len(reports) > 0 {
			appErr = appErrors.WithDetails(appErr, reports)
		}
		response.Error(c, appErr)
		return
	}
	response.Created(c, session)
}

func buildSessionQuery(c *gin.Context) (models.SessionQuery, error) {
	axes := []struct {
		param string
		axis  models.QueryAxis
	}{
		{"room", models.AxisRoom},
		{"teacher", models.AxisTeacher},
		{"group", models.AxisGroup},
		{"department", models.AxisDepartment},
		{"specialty", models.AxisSpecialty},
		{"level", models.AxisLevel},
	}

	query := models.SessionQuery{Axis: models.AxisAll}
	selected := 0
	for _, a := range axes {
		if value := c.Query(a.param); value != "" {
			query.Axis = a.axis
			query.AxisID = value
			selected++
		}
	}
	if selected > 1 {
		return query, appErrors.Clone(appErrors.ErrValidation, "at most one query axis may be given")
	}

	query.From = c.Query("from")
	query.To = c.Query("to")
	if raw := c.Query("status"); raw != "" {
		for _, status := range strings.Split(raw, ",") {
			query.Statuses = append(query.Statuses, models.SessionStatus(strings.ToUpper(strings.TrimSpace(status))))
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		query.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		query.PageSize = limit
	}
	return query, nil
}
