package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campuslab/lostfound_backend/config"
	"github.com/campuslab/lostfound_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NegotiationSession struct {
	ID                  int               `gorm:"primary_key" json:"id"`
	LostItemId          int               `gorm:"not null;index" json:"lost_item_id"`
	FoundItemId         int               `gorm:"not null;index" json:"found_item_id"`
	LostItem            *Item             `gorm:"foreignKey:LostItemId" json:"lost_item,omitempty"`
	FoundItem           *Item             `gorm:"foreignKey:FoundItemId" json:"found_item,omitempty"`
	SeekerId            int               `gorm:"not null;index" json:"seeker_id"`
	FinderId            int               `gorm:"not null;index" json:"finder_id"`
	Status              NegotiationStatus `gorm:"size:30;not null;index" json:"status"`
	ChatLog             ChatLog           `gorm:"type:json" json:"chat_log"`
	MatchScore          float64           `gorm:"not null" json:"match_score"`
	Forced              bool              `gorm:"not null;default:false" json:"forced"`
	SeekerConfirm       Confirmation      `gorm:"size:10;not null;default:UNSET" json:"seeker_confirm"`
	FinderConfirm       Confirmation      `gorm:"size:10;not null;default:UNSET" json:"finder_confirm"`
	SeekerReturnConfirm Confirmation      `gorm:"size:10;not null;default:UNSET" json:"seeker_return_confirm"`
	FinderReturnConfirm Confirmation      `gorm:"size:10;not null;default:UNSET" json:"finder_return_confirm"`
	CreatedAt           time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
	CompletedAt         *time.Time        `json:"completed_at,omitempty"`

	// Schedule is the latest ReturnSchedule row, hydrated on single-session
	// reads only.
	Schedule *ReturnSchedule `gorm:"-" json:"schedule,omitempty"`
}

// itemStatusFor maps a session status to the status both paired items carry
// while the session is in that state.
func itemStatusFor(status NegotiationStatus) ItemStatus {
	switch status {
	case NegotiationStatusActive, NegotiationStatusPendingConfirm:
		return ItemStatusNegotiating
	case NegotiationStatusConfirmed, NegotiationStatusSchedulePending, NegotiationStatusWaitingReturn:
		return ItemStatusMatched
	case NegotiationStatusReturned:
		return ItemStatusClosed
	default:
		return ItemStatusOpen
	}
}

// CreateSession opens a negotiation for a lost/found pair inside the caller's
// transaction. It rechecks that neither item is already tied up in a live
// session, which makes the create safe to race under the matcher's pair lock.
func CreateSession(tx *gorm.DB, lost, found *Item, score float64, forced bool) (*NegotiationSession, error) {
	var busy int64
	err := tx.Model(&NegotiationSession{}).
		Where("(lost_item_id IN ? OR found_item_id IN ?)", []int{lost.ID, found.ID}, []int{lost.ID, found.ID}).
		Where("status IN ?", NonTerminalStatuses()).
		Count(&busy).Error
	if err != nil {
		return nil, err
	}
	if busy > 0 {
		return nil, utils.ConflictError("item %d or %d already has an active negotiation", lost.ID, found.ID)
	}

	session := NegotiationSession{
		LostItemId:  lost.ID,
		FoundItemId: found.ID,
		SeekerId:    lost.OwnerId,
		FinderId:    found.OwnerId,
		Status:      NegotiationStatusActive,
		MatchScore:  score,
		Forced:      forced,
		ChatLog: ChatLog{}.Append(ChatSenderSystem, "",
			fmt.Sprintf("Negotiation opened for lost item %q and found item %q (score %.2f).", lost.Title, found.Title, score)),
	}
	if err := tx.Create(&session).Error; err != nil {
		return nil, err
	}
	if err := setItemStatuses(tx, ItemStatusNegotiating, lost.ID, found.ID); err != nil {
		return nil, err
	}

	content := fmt.Sprintf("A possible match was found between %q and %q. An automated conversation will verify the details.", lost.Title, found.Title)
	for _, userId := range []int{session.SeekerId, session.FinderId} {
		if err := SendNotification(tx, userId, NotificationTypeMatchFound, content, nil, &session.ID); err != nil {
			return nil, err
		}
	}
	return &session, nil
}

func GetMyNegotiations(ctx context.Context) ([]*NegotiationSession, error) {
	user, err := CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	var sessions []*NegotiationSession
	err = db.WithContext(ctx).
		Preload("LostItem").Preload("FoundItem").
		Where("seeker_id = ? OR finder_id = ?", user.ID, user.ID).
		Order("updated_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetNegotiation returns a session visible only to its two parties.
func GetNegotiation(ctx context.Context, id int) (*NegotiationSession, error) {
	user, err := CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	session, err := utils.FetchSingleModel[NegotiationSession](ctx, id, "LostItem", "FoundItem", "LostItem.Images", "FoundItem.Images")
	if err != nil {
		return nil, utils.NotFoundError("negotiation %d not found", id)
	}
	if session.SeekerId != user.ID && session.FinderId != user.ID {
		return nil, utils.ForbiddenError("you are not a party to negotiation %d", id)
	}
	var schedule ReturnSchedule
	err = config.GetDB().WithContext(ctx).
		Where("session_id = ?", session.ID).
		Order("created_at DESC").
		First(&schedule).Error
	if err == nil {
		session.Schedule = &schedule
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return session, nil
}

// transitionSession moves a session from one status to another with an
// optimistic guard. Zero affected rows means someone else already moved the
// session, which surfaces as a Conflict rather than a silent overwrite.
func transitionSession(tx *gorm.DB, session *NegotiationSession, to NegotiationStatus, extra map[string]interface{}) error {
	from := session.Status
	if !CanTransition(from, to) {
		return utils.ConflictError("negotiation %d cannot move from %s to %s", session.ID, from, to)
	}
	updates := map[string]interface{}{"status": to}
	if to.Settled() {
		updates["completed_at"] = time.Now()
	} else if from.Settled() {
		// A force-match revives a settled session.
		updates["completed_at"] = nil
	}
	for k, v := range extra {
		updates[k] = v
	}
	res := tx.Model(&NegotiationSession{}).
		Where("id = ? AND status = ?", session.ID, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ConflictError("negotiation %d changed concurrently; reload and retry", session.ID)
	}
	session.Status = to
	if err := setItemStatuses(tx, itemStatusFor(to), session.LostItemId, session.FoundItemId); err != nil {
		return err
	}
	return nil
}

type ConfirmInput struct {
	IsMyItem bool `json:"is_my_item"`
}

// ConfirmItem records the seeker's verdict on a pending match. Only the
// seeker decides here: the finder already asserted the item is not theirs by
// posting it as found.
func ConfirmItem(ctx context.Context, sessionId int, isMyItem bool) (*NegotiationSession, error) {
	user, err := CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	session, err := GetNegotiation(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if session.SeekerId != user.ID {
		return nil, utils.ForbiddenError("only the seeker may confirm the match")
	}
	if session.Status != NegotiationStatusPendingConfirm {
		return nil, utils.ConflictError("negotiation %d is %s, not awaiting confirmation", sessionId, session.Status)
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		verdict := ConfirmationFromBool(isMyItem)
		if isMyItem {
			log := session.ChatLog.Append(ChatSenderSystem, "", "Seeker confirmed the item is theirs. Proceeding to scheduling.")
			if err := transitionSession(tx, session, NegotiationStatusConfirmed, map[string]interface{}{
				"seeker_confirm": verdict,
				"chat_log":       log,
			}); err != nil {
				return err
			}
			session.ChatLog = log
			session.SeekerConfirm = verdict
			content := fmt.Sprintf("The owner confirmed the match for %q. Please propose a return time and place.", titleOf(session.FoundItem))
			return SendNotification(tx, session.FinderId, NotificationTypeConfirmRequest, content, &session.FoundItemId, &session.ID)
		}

		log := session.ChatLog.Append(ChatSenderSystem, "", "Seeker rejected the match. Both items are open again.")
		if err := transitionSession(tx, session, NegotiationStatusRejected, map[string]interface{}{
			"seeker_confirm": verdict,
			"chat_log":       log,
		}); err != nil {
			return err
		}
		session.ChatLog = log
		session.SeekerConfirm = verdict
		if err := RecordFailedMatch(tx, session.LostItemId, session.FoundItemId, "rejected by seeker"); err != nil {
			return err
		}
		content := fmt.Sprintf("The owner decided %q is not their item. The match was cancelled.", titleOf(session.FoundItem))
		return SendNotification(tx, session.FinderId, NotificationTypeNegotiationUpdate, content, &session.FoundItemId, &session.ID)
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ForceMatch lets the seeker override an automated failure or an earlier
// rejection and pair the items anyway.
func ForceMatch(ctx context.Context, sessionId int) (*NegotiationSession, error) {
	user, err := CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	session, err := GetNegotiation(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if session.SeekerId != user.ID {
		return nil, utils.ForbiddenError("only the seeker may force a match")
	}
	if session.Status != NegotiationStatusFailed && session.Status != NegotiationStatusRejected {
		return nil, utils.ConflictError("negotiation %d is %s; only failed or rejected sessions can be forced", sessionId, session.Status)
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var busy int64
		err := tx.Model(&NegotiationSession{}).
			Where("id <> ?", session.ID).
			Where("(lost_item_id IN ? OR found_item_id IN ?)",
				[]int{session.LostItemId, session.FoundItemId}, []int{session.LostItemId, session.FoundItemId}).
			Where("status IN ?", NonTerminalStatuses()).
			Count(&busy).Error
		if err != nil {
			return err
		}
		if busy > 0 {
			return utils.ConflictError("one of the items is already in another active negotiation")
		}

		log := session.ChatLog.Append(ChatSenderSystem, "", "Seeker forced the match despite the earlier outcome.")
		if err := transitionSession(tx, session, NegotiationStatusConfirmed, map[string]interface{}{
			"forced":         true,
			"seeker_confirm": ConfirmationYes,
			"chat_log":       log,
		}); err != nil {
			return err
		}
		session.ChatLog = log
		session.Forced = true
		session.SeekerConfirm = ConfirmationYes
		content := fmt.Sprintf("The owner insists %q is their item and confirmed the match. Please propose a return time and place.", titleOf(session.FoundItem))
		return SendNotification(tx, session.FinderId, NotificationTypeConfirmRequest, content, &session.FoundItemId, &session.ID)
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// SubmitSchedule lets the finder propose a handover for a confirmed match.
func SubmitSchedule(ctx context.Context, sessionId int, input *NewSchedule) (*ReturnSchedule, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	user, err := CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	session, err := GetNegotiation(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if session.FinderId != user.ID {
		return nil, utils.ForbiddenError("only the finder may propose a schedule")
	}
	if session.Status != NegotiationStatusConfirmed {
		return nil, utils.ConflictError("negotiation %d is %s, not ready for scheduling", sessionId, session.Status)
	}

	schedule := ReturnSchedule{
		SessionId:    session.ID,
		ProposedTime: input.ProposedTime,
		Location:     input.Location,
		Note:         input.Note,
		Status:       ScheduleStatusPending,
	}
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&schedule).Error; err != nil {
			return err
		}
		log := session.ChatLog.Append(ChatSenderSystem, "",
			fmt.Sprintf("Finder proposed handover at %s, %s.", schedule.ProposedTime.Format(time.RFC3339), schedule.Location))
		if err := transitionSession(tx, session, NegotiationStatusSchedulePending, map[string]interface{}{
			"chat_log": log,
		}); err != nil {
			return err
		}
		session.ChatLog = log
		content := fmt.Sprintf("A return for %q was proposed: %s at %s.", titleOf(session.LostItem), schedule.ProposedTime.Format("2006-01-02 15:04"), schedule.Location)
		return SendNotification(tx, session.SeekerId, NotificationTypeSchedule, content, &session.LostItemId, &session.ID)
	})
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

// currentSchedule fetches the pending schedule for a session.
func currentSchedule(tx *gorm.DB, sessionId int) (*ReturnSchedule, error) {
	var schedule ReturnSchedule
	err := tx.Where("session_id = ? AND status = ?", sessionId, ScheduleStatusPending).
		Order("created_at DESC").
		First(&schedule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NotFoundError("negotiation %d has no pending schedule", sessionId)
	}
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func ApproveSchedule(ctx context.Context, sessionId int) (*NegotiationSession, error) {
	user, err := CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	session, err := GetNegotiation(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if session.SeekerId != user.ID {
		return nil, utils.ForbiddenError("only the seeker may approve a schedule")
	}
	if session.Status != NegotiationStatusSchedulePending {
		return nil, utils.ConflictError("negotiation %d is %s, no schedule awaits approval", sessionId, session.Status)
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		schedule, err := currentSchedule(tx, session.ID)
		if err != nil {
			return err
		}
		if err := tx.Model(schedule).Update("status", ScheduleStatusApproved).Error; err != nil {
			return err
		}
		log := session.ChatLog.Append(ChatSenderSystem, "", "Seeker accepted the proposed handover. Waiting for the return to happen.")
		if err := transitionSession(tx, session, NegotiationStatusWaitingReturn, map[string]interface{}{
			"chat_log": log,
		}); err != nil {
			return err
		}
		session.ChatLog = log
		content := fmt.Sprintf("The owner accepted your proposal for %q: %s at %s.", titleOf(session.FoundItem), schedule.ProposedTime.Format("2006-01-02 15:04"), schedule.Location)
		return SendNotification(tx, session.FinderId, NotificationTypeSchedule, content, &session.FoundItemId, &session.ID)
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func RejectSchedule(ctx context.Context, sessionId int, input *ScheduleRejection) (*NegotiationSession, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	user, err := CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	session, err := GetNegotiation(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if session.SeekerId != user.ID {
		return nil, utils.ForbiddenError("only the seeker may reject a schedule")
	}
	if session.Status != NegotiationStatusSchedulePending {
		return nil, utils.ConflictError("negotiation %d is %s, no schedule awaits approval", sessionId, session.Status)
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		schedule, err := currentSchedule(tx, session.ID)
		if err != nil {
			return err
		}
		err = tx.Model(schedule).Updates(map[string]interface{}{
			"status":        ScheduleStatusRejected,
			"reject_reason": input.Reason,
		}).Error
		if err != nil {
			return err
		}
		log := session.ChatLog.Append(ChatSenderSystem, "",
			fmt.Sprintf("Seeker declined the proposed handover: %s", input.Reason))
		if err := transitionSession(tx, session, NegotiationStatusConfirmed, map[string]interface{}{
			"chat_log": log,
		}); err != nil {
			return err
		}
		session.ChatLog = log
		content := fmt.Sprintf("The owner declined your proposal for %q (%s). Please propose another time or place.", titleOf(session.FoundItem), input.Reason)
		return SendNotification(tx, session.FinderId, NotificationTypeSchedule, content, &session.FoundItemId, &session.ID)
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

type ReturnInput struct {
	IsReturned *bool `json:"is_returned" binding:"required"`
}

// ConfirmReturn records one party's account of the handover. A single "no"
// fails the return immediately; the session completes only when both parties
// report success.
func ConfirmReturn(ctx context.Context, sessionId int, success bool) (*NegotiationSession, error) {
	user, err := CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	session, err := GetNegotiation(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if session.Status != NegotiationStatusWaitingReturn {
		return nil, utils.ConflictError("negotiation %d is %s, not waiting for a return", sessionId, session.Status)
	}

	verdict := ConfirmationFromBool(success)
	var column, who string
	var otherParty int
	switch user.ID {
	case session.SeekerId:
		column, who, otherParty = "seeker_return_confirm", "Seeker", session.FinderId
	case session.FinderId:
		column, who, otherParty = "finder_return_confirm", "Finder", session.SeekerId
	default:
		return nil, utils.ForbiddenError("you are not a party to negotiation %d", sessionId)
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Record this party's verdict first. The row lock serializes
		// concurrent confirmations, so the outcome below is resolved from
		// the stored columns rather than the snapshot read above.
		res := tx.Model(&NegotiationSession{}).
			Where("id = ? AND status = ?", session.ID, NegotiationStatusWaitingReturn).
			Update(column, verdict)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.ConflictError("negotiation %d changed concurrently; reload and retry", session.ID)
		}
		var fresh NegotiationSession
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&fresh, session.ID).Error; err != nil {
			return err
		}
		session.Status = fresh.Status
		session.ChatLog = fresh.ChatLog
		session.SeekerReturnConfirm = fresh.SeekerReturnConfirm
		session.FinderReturnConfirm = fresh.FinderReturnConfirm

		outcome := ResolveReturn(fresh.SeekerReturnConfirm, fresh.FinderReturnConfirm)
		switch outcome {
		case ReturnSucceeded:
			log := session.ChatLog.Append(ChatSenderSystem, "", "Both parties confirmed the return. The item is back with its owner.")
			if err := transitionSession(tx, session, NegotiationStatusReturned, map[string]interface{}{
				"chat_log": log,
			}); err != nil {
				return err
			}
			session.ChatLog = log
			content := fmt.Sprintf("The return of %q is complete. Thank you!", titleOf(session.LostItem))
			for _, userId := range []int{session.SeekerId, session.FinderId} {
				if err := SendNotification(tx, userId, NotificationTypeNegotiationUpdate, content, &session.LostItemId, &session.ID); err != nil {
					return err
				}
			}
			return nil
		case ReturnFailed:
			log := session.ChatLog.Append(ChatSenderSystem, "",
				fmt.Sprintf("%s reported the handover did not happen. The return failed.", who))
			if err := transitionSession(tx, session, NegotiationStatusReturnFailed, map[string]interface{}{
				"chat_log": log,
			}); err != nil {
				return err
			}
			session.ChatLog = log
			if err := RecordFailedMatch(tx, session.LostItemId, session.FoundItemId, "return failed"); err != nil {
				return err
			}
			content := fmt.Sprintf("The return of %q was reported as failed. Both items are open again.", titleOf(session.LostItem))
			return SendNotification(tx, otherParty, NotificationTypeNegotiationUpdate, content, &session.LostItemId, &session.ID)
		default:
			// One party confirmed, the other has not answered yet. The
			// session stays put; the verdict column is already recorded.
			log := session.ChatLog.Append(ChatSenderSystem, "",
				fmt.Sprintf("%s confirmed the handover. Waiting for the other party.", who))
			if err := tx.Model(&NegotiationSession{}).
				Where("id = ?", session.ID).
				Update("chat_log", log).Error; err != nil {
				return err
			}
			session.ChatLog = log
			content := fmt.Sprintf("Your counterpart confirmed the handover of %q. Please confirm on your side.", titleOf(session.LostItem))
			return SendNotification(tx, otherParty, NotificationTypeNegotiationUpdate, content, &session.LostItemId, &session.ID)
		}
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func titleOf(item *Item) string {
	if item == nil {
		return "the item"
	}
	return item.Title
}
