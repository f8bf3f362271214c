package models

import (
	"context"
	"time"

	"github.com/campuslab/lostfound_backend/config"
	"github.com/campuslab/lostfound_backend/utils"
	"gorm.io/gorm"
)

type Notification struct {
	ID        int              `gorm:"primary_key" json:"id"`
	UserId    int              `gorm:"not null;index" json:"user_id"`
	Type      NotificationType `gorm:"size:50;not null" json:"type"`
	Content   string           `gorm:"size:1000;not null" json:"content"`
	ItemId    *int             `gorm:"index" json:"item_id,omitempty"`
	SessionId *int             `gorm:"index" json:"session_id,omitempty"`
	IsRead    bool             `gorm:"not null;default:false" json:"is_read"`
	CreatedAt time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

// SendNotification writes a notification inside the caller's transaction so
// that state changes and their fan-out commit or roll back together.
func SendNotification(tx *gorm.DB, userId int, kind NotificationType, content string, itemId, sessionId *int) error {
	n := Notification{
		UserId:    userId,
		Type:      kind,
		Content:   content,
		ItemId:    itemId,
		SessionId: sessionId,
	}
	return tx.Create(&n).Error
}

func GetUserNotifications(ctx context.Context, unreadOnly bool) ([]*Notification, error) {
	user, err := CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("user_id = ?", user.ID)
	if unreadOnly {
		dbCtx = dbCtx.Where("is_read = ?", false)
	}
	var notifications []*Notification
	if err := dbCtx.Order("created_at DESC").Find(&notifications).Error; err != nil {
		return nil, err
	}
	return notifications, nil
}

func MarkNotificationRead(ctx context.Context, id int) (*Notification, error) {
	user, err := CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	notification, err := utils.FetchSingleModel[Notification](ctx, id)
	if err != nil {
		return nil, utils.NotFoundError("notification %d not found", id)
	}
	if notification.UserId != user.ID {
		return nil, utils.ForbiddenError("notification %d belongs to another user", id)
	}
	if !notification.IsRead {
		db := config.GetDB()
		if err := db.WithContext(ctx).Model(notification).Update("is_read", true).Error; err != nil {
			return nil, err
		}
		notification.IsRead = true
	}
	return notification, nil
}
