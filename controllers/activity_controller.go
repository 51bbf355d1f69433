package controllers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"tws-options/services"
)

// ActivityController exposes the request audit trail.
type ActivityController struct {
	activity *services.ActivityLogger
	logger   *logrus.Logger
}

// NewActivityController creates a new activity controller.
func NewActivityController(activity *services.ActivityLogger) *ActivityController {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &ActivityController{
		activity: activity,
		logger:   logger,
	}
}

// HandleRecentActivity handles GET /activity/recent?limit=50.
func (ac *ActivityController) HandleRecentActivity(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}

	records, err := ac.activity.RecentRequests(limit)
	if err != nil {
		ac.logger.WithError(err).Error("Failed to load recent activity")
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}

	c.JSON(200, gin.H{
		"count":    len(records),
		"requests": records,
	})
}
