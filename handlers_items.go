package main

import (
	"context"
	"net/http"
	"time"

	"github.com/campuslab/lostfound_backend/config"
	"github.com/campuslab/lostfound_backend/models"
	"github.com/campuslab/lostfound_backend/utils"
	"github.com/campuslab/lostfound_backend/workflow"
	"github.com/gin-gonic/gin"
)

// runMatcherAsync kicks off matching in the background with a fresh context
// carrying the request's correlation id, so the HTTP response never waits on
// the dialogue.
func runMatcherAsync(reqCtx context.Context, matcher *workflow.Matcher, itemId int) {
	ctx := context.Background()
	if cid, ok := utils.GetCorrelationIdFromContext(reqCtx); ok {
		ctx = utils.SetCorrelationIdInContext(ctx, cid)
	}
	go func() {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		if err := matcher.Run(ctx, itemId); err != nil {
			config.LogError(config.GetLogger(), "server.go", "runMatcherAsync", "automatic matching", itemId, err)
		}
	}()
}

func createItemHandler(matcher *workflow.Matcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewItem
		if err := bindJSON(c, &input); err != nil {
			respondError(c, err)
			return
		}
		item, err := models.CreateItem(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		runMatcherAsync(c.Request.Context(), matcher, item.ID)
		c.JSON(http.StatusCreated, item)
	}
}

func listItemsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var itemType, status *string
		if v := c.Query("type"); v != "" {
			itemType = &v
		}
		if v := c.Query("status"); v != "" {
			status = &v
		}
		items, err := models.GetItems(c.Request.Context(), itemType, status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

func myItemsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := models.GetMyItems(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

func getItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathId(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		item, err := models.GetItem(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func updateItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathId(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		var input models.ItemUpdate
		if err := bindJSON(c, &input); err != nil {
			respondError(c, err)
			return
		}
		item, err := models.UpdateItem(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func deleteItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathId(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		if err := models.DeleteItem(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "item deleted"})
	}
}

// triggerMatchHandler lets the owner re-run matching for an item, for
// example after no-match or once new counterpart items were posted.
func triggerMatchHandler(matcher *workflow.Matcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathId(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		user, err := models.CurrentUser(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		item, err := models.GetItem(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		if item.OwnerId != user.ID {
			respondError(c, utils.ForbiddenError("only the owner may trigger matching"))
			return
		}
		if item.Status == models.ItemStatusMatching {
			c.JSON(http.StatusAccepted, gin.H{"message": "matching already in progress"})
			return
		}
		if item.Status != models.ItemStatusOpen {
			respondError(c, utils.ConflictError("item %d is %s, only open items can be matched", id, item.Status))
			return
		}
		runMatcherAsync(c.Request.Context(), matcher, item.ID)
		c.JSON(http.StatusAccepted, gin.H{"message": "matching started"})
	}
}
