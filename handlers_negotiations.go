package main

import (
	"net/http"

	"github.com/campuslab/lostfound_backend/models"
	"github.com/campuslab/lostfound_backend/workflow"
	"github.com/gin-gonic/gin"
)

func myNegotiationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessions, err := models.GetMyNegotiations(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, sessions)
	}
}

func getNegotiationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathId(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		session, err := models.GetNegotiation(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, session)
	}
}

// sessionResponse is the shape every negotiation action returns: what
// happened in plain words, the status the session landed in, and the full
// session for clients that want to re-render.
func sessionResponse(c *gin.Context, code int, message string, session *models.NegotiationSession) {
	c.JSON(code, gin.H{
		"message": message,
		"status":  session.Status,
		"session": session,
	})
}

func confirmMessage(isMyItem bool) string {
	if isMyItem {
		return "Match confirmed. The finder will propose a handover."
	}
	return "Match rejected. Both items are open again."
}

func returnOutcomeMessage(status models.NegotiationStatus) string {
	switch status {
	case models.NegotiationStatusReturned:
		return "The return is complete."
	case models.NegotiationStatusReturnFailed:
		return "The return failed. Both items are open again."
	default:
		return "Confirmation recorded. Waiting for the other party."
	}
}

func confirmItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathId(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		var input models.ConfirmInput
		if err := bindJSON(c, &input); err != nil {
			respondError(c, err)
			return
		}
		session, err := models.ConfirmItem(c.Request.Context(), id, input.IsMyItem)
		if err != nil {
			respondError(c, err)
			return
		}
		sessionResponse(c, http.StatusOK, confirmMessage(input.IsMyItem), session)
	}
}

func forceMatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathId(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		session, err := models.ForceMatch(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		sessionResponse(c, http.StatusOK, "Match forced. The finder will propose a handover.", session)
	}
}

func submitScheduleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathId(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		var input models.NewSchedule
		if err := bindJSON(c, &input); err != nil {
			respondError(c, err)
			return
		}
		schedule, err := models.SubmitSchedule(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"message":  "Handover proposed. Waiting for the owner's approval.",
			"status":   models.NegotiationStatusSchedulePending,
			"schedule": schedule,
		})
	}
}

func approveScheduleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathId(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		session, err := models.ApproveSchedule(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		sessionResponse(c, http.StatusOK, "Schedule approved. Waiting for the return.", session)
	}
}

func rejectScheduleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathId(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		var input models.ScheduleRejection
		if err := bindJSON(c, &input); err != nil {
			respondError(c, err)
			return
		}
		session, err := models.RejectSchedule(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		sessionResponse(c, http.StatusOK, "Schedule rejected. The finder can propose another.", session)
	}
}

func confirmReturnHandler(matcher *workflow.Matcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathId(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		var input models.ReturnInput
		if err := bindJSON(c, &input); err != nil {
			respondError(c, err)
			return
		}
		session, err := models.ConfirmReturn(c.Request.Context(), id, *input.IsReturned)
		if err != nil {
			respondError(c, err)
			return
		}
		if session.Status == models.NegotiationStatusReturnFailed {
			// The lost item is open again; put it back in the matching pool.
			runMatcherAsync(c.Request.Context(), matcher, session.LostItemId)
		}
		sessionResponse(c, http.StatusOK, returnOutcomeMessage(session.Status), session)
	}
}
