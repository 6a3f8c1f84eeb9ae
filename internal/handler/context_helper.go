package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/univhub/timetable-engine/internal/middleware"
	"github.com/univhub/timetable-engine/internal/models"
)

func actorFromContext(c *gin.Context) *models.Actor {
	return middleware.Actor(c)
}
