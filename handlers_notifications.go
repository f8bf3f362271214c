package main

import (
	"net/http"
	"strings"

	"github.com/campuslab/lostfound_backend/models"
	"github.com/gin-gonic/gin"
)

func listNotificationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		unreadOnly := strings.EqualFold(c.Query("unread_only"), "true")
		notifications, err := models.GetUserNotifications(c.Request.Context(), unreadOnly)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, notifications)
	}
}

func markNotificationReadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathId(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		notification, err := models.MarkNotificationRead(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, notification)
	}
}
