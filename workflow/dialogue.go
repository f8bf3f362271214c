package workflow

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/campuslab/lostfound_backend/config"
	"github.com/campuslab/lostfound_backend/models"
	"github.com/campuslab/lostfound_backend/utils"
	"gorm.io/gorm"
)

const DefaultMaxTurns = 6

// AgentTurn is one utterance produced for either side of the automated
// conversation.
type AgentTurn struct {
	Action  models.AgentAction
	Content string
}

// TurnGenerator produces the next turn for one side of the conversation.
// role is the side speaking; own is that side's item, other is the
// counterpart item as far as the speaker is allowed to see it.
type TurnGenerator interface {
	Generate(ctx context.Context, role models.ChatSender, own, other *models.Item, transcript models.ChatLog) (AgentTurn, error)
}

// Dialogue runs the bounded agent conversation that verifies a candidate
// match before any human is asked to confirm.
type Dialogue struct {
	Generator TurnGenerator
	MaxTurns  int
}

func NewDialogue(gen TurnGenerator) *Dialogue {
	return &Dialogue{Generator: gen, MaxTurns: maxTurnsFromEnv()}
}

func maxTurnsFromEnv() int {
	if v := os.Getenv("DIALOGUE_MAX_TURNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return DefaultMaxTurns
}

// Run alternates turns between the seeker and finder agents, starting with
// the seeker, until one side agrees, one side rejects, or the turn budget is
// spent. It returns the transcript and whether the agents converged on a
// match. A generator error aborts the current turn but never the session:
// the conversation ends unconverged instead.
func (d *Dialogue) Run(ctx context.Context, lost, found *models.Item, log models.ChatLog) (models.ChatLog, bool) {
	logger := config.GetLogger()
	maxTurns := d.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	for turn := 0; turn < maxTurns; turn++ {
		role := models.ChatSenderSeeker
		own, other := lost, found
		if turn%2 == 1 {
			role = models.ChatSenderFinder
			own, other = found, lost
		}

		out, err := d.Generator.Generate(ctx, role, own, other, log)
		if err != nil {
			config.LogWarn(logger, "workflow", "Dialogue.Run", "turn generation failed", map[string]interface{}{
				"turn": turn,
				"role": string(role),
			}, err)
			log = log.Append(models.ChatSenderSystem, "", "The automated conversation could not continue.")
			return log, false
		}

		log = log.Append(role, out.Action, out.Content)

		switch out.Action {
		case models.AgentActionAgree:
			return log, true
		case models.AgentActionReject:
			return log, false
		}
	}

	log = log.Append(models.ChatSenderSystem, "",
		fmt.Sprintf("The conversation reached its limit of %d turns without a conclusion.", maxTurns))
	return log, false
}

// RunNegotiationDialogue executes the dialogue for a freshly created session
// and persists its outcome: convergence moves the session to await the
// seeker's confirmation, anything else fails it and frees both items. The
// returned bool reports whether the dialogue converged.
func RunNegotiationDialogue(ctx context.Context, d *Dialogue, sessionId int) (bool, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	var session models.NegotiationSession
	err := db.WithContext(ctx).
		Preload("LostItem").Preload("FoundItem").
		First(&session, sessionId).Error
	if err != nil {
		return false, err
	}
	if session.Status != models.NegotiationStatusActive {
		return false, utils.ConflictError("negotiation %d is %s, dialogue already ran", sessionId, session.Status)
	}

	log, converged := d.Run(ctx, session.LostItem, session.FoundItem, session.ChatLog)

	return converged, db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if converged {
			log = log.Append(models.ChatSenderSystem, "", "The agents agree this looks like a match. The owner will be asked to confirm.")
			res := tx.Model(&models.NegotiationSession{}).
				Where("id = ? AND status = ?", session.ID, models.NegotiationStatusActive).
				Updates(map[string]interface{}{
					"status":   models.NegotiationStatusPendingConfirm,
					"chat_log": log,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return utils.ConflictError("negotiation %d changed concurrently", session.ID)
			}
			content := fmt.Sprintf("The automated check suggests %q matches your lost item. Is it yours?", titleOf(session.FoundItem))
			return models.SendNotification(tx, session.SeekerId, models.NotificationTypeConfirmRequest, content, &session.LostItemId, &session.ID)
		}

		log = log.Append(models.ChatSenderSystem, "", "The agents could not agree on a match. Both items are open again.")
		res := tx.Model(&models.NegotiationSession{}).
			Where("id = ? AND status = ?", session.ID, models.NegotiationStatusActive).
			Updates(map[string]interface{}{
				"status":       models.NegotiationStatusFailed,
				"chat_log":     log,
				"completed_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.ConflictError("negotiation %d changed concurrently", session.ID)
		}
		if err := tx.Model(&models.Item{}).
			Where("id IN ?", []int{session.LostItemId, session.FoundItemId}).
			Update("status", models.ItemStatusOpen).Error; err != nil {
			return err
		}
		if err := models.RecordFailedMatch(tx, session.LostItemId, session.FoundItemId, "dialogue did not converge"); err != nil {
			return err
		}
		content := fmt.Sprintf("The automated check between %q and %q did not line up. You can review the conversation and force the match if you disagree.", titleOf(session.LostItem), titleOf(session.FoundItem))
		if err := models.SendNotification(tx, session.SeekerId, models.NotificationTypeNegotiationUpdate, content, &session.LostItemId, &session.ID); err != nil {
			return err
		}
		logger.WithField("session_id", session.ID).Info("dialogue ended without convergence")
		return nil
	})
}

func titleOf(item *models.Item) string {
	if item == nil {
		return "the item"
	}
	return item.Title
}
