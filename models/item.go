package models

import (
	"context"
	"time"

	"github.com/campuslab/lostfound_backend/config"
	"github.com/campuslab/lostfound_backend/utils"
	"gorm.io/gorm"
)

type Item struct {
	ID            int         `gorm:"primary_key" json:"id"`
	Title         string      `gorm:"size:200;not null" json:"title"`
	Description   string      `gorm:"type:text;not null" json:"description"`
	AiDescription string      `gorm:"type:text" json:"ai_description,omitempty"`
	Type          ItemType    `gorm:"type:enum('LOST','FOUND');not null;index" json:"type"`
	Status        ItemStatus  `gorm:"type:enum('OPEN','MATCHING','NEGOTIATING','MATCHED','CLOSED');not null;default:OPEN;index" json:"status"`
	Location      string      `gorm:"size:200" json:"location"`
	OwnerId       int         `gorm:"not null;index" json:"owner_id"`
	Owner         *User       `gorm:"foreignKey:OwnerId" json:"owner,omitempty"`
	Images        []ItemImage `gorm:"foreignKey:ItemId" json:"images"`
	CreatedAt     time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

type ItemImage struct {
	ID         int       `gorm:"primary_key" json:"id"`
	ItemId     int       `gorm:"not null;index" json:"item_id"`
	ImagePath  string    `gorm:"size:500;not null" json:"image_path"`
	UploadedAt time.Time `gorm:"autoCreateTime" json:"uploaded_at"`
}

type NewItem struct {
	Title         string   `json:"title" binding:"required"`
	Description   string   `json:"description" binding:"required"`
	AiDescription string   `json:"ai_description"`
	Type          string   `json:"type" binding:"required,oneof=LOST FOUND"`
	Location      string   `json:"location"`
	ImagePaths    []string `json:"image_paths"`
}

type ItemUpdate struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
}

func CreateItem(ctx context.Context, input *NewItem) (*Item, error) {
	user, err := CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	itemType, err := ParseItemType(input.Type)
	if err != nil {
		return nil, utils.ValidationError("%s", err.Error())
	}

	db := config.GetDB()
	item := Item{
		Title:         input.Title,
		Description:   input.Description,
		AiDescription: input.AiDescription,
		Type:          itemType,
		Status:        ItemStatusOpen,
		Location:      input.Location,
		OwnerId:       user.ID,
	}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		for _, path := range input.ImagePaths {
			img := ItemImage{ItemId: item.ID, ImagePath: path}
			if err := tx.Create(&img).Error; err != nil {
				return err
			}
			item.Images = append(item.Images, img)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func GetItems(ctx context.Context, itemType *string, status *string) ([]*Item, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Preload("Images").Preload("Owner")

	if itemType != nil && *itemType != "" {
		t, err := ParseItemType(*itemType)
		if err != nil {
			return nil, utils.ValidationError("%s", err.Error())
		}
		dbCtx = dbCtx.Where("type = ?", t)
	}
	if status != nil && *status != "" {
		s, err := ParseItemStatus(*status)
		if err != nil {
			return nil, utils.ValidationError("%s", err.Error())
		}
		dbCtx = dbCtx.Where("status = ?", s)
	}

	var items []*Item
	if err := dbCtx.Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func GetMyItems(ctx context.Context) ([]*Item, error) {
	user, err := CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	var items []*Item
	err = db.WithContext(ctx).Preload("Images").
		Where("owner_id = ?", user.ID).
		Order("created_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func GetItem(ctx context.Context, id int) (*Item, error) {
	item, err := utils.FetchSingleModel[Item](ctx, id, "Images", "Owner")
	if err != nil {
		return nil, utils.NotFoundError("item %d not found", id)
	}
	return item, nil
}

func UpdateItem(ctx context.Context, id int, input *ItemUpdate) (*Item, error) {
	user, err := CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	item, err := GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.OwnerId != user.ID {
		return nil, utils.ForbiddenError("only the owner may edit this item")
	}

	updates := map[string]interface{}{}
	if input.Title != nil {
		updates["title"] = *input.Title
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Location != nil {
		updates["location"] = *input.Location
	}
	if len(updates) == 0 {
		return item, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&Item{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, err
	}
	return GetItem(ctx, id)
}

// DeleteItem removes an owner's item. Deletion is refused while any
// non-terminal session references the item; the session lifecycle is
// authoritative over deletability.
func DeleteItem(ctx context.Context, id int) error {
	user, err := CurrentUser(ctx)
	if err != nil {
		return err
	}
	item, err := GetItem(ctx, id)
	if err != nil {
		return err
	}
	if item.OwnerId != user.ID {
		return utils.ForbiddenError("only the owner may delete this item")
	}

	db := config.GetDB()
	var active int64
	err = db.WithContext(ctx).Model(&NegotiationSession{}).
		Where("(lost_item_id = ? OR found_item_id = ?)", id, id).
		Where("status IN ?", NonTerminalStatuses()).
		Count(&active).Error
	if err != nil {
		return err
	}
	if active > 0 {
		return utils.ConflictError("item %d has a negotiation in progress; resolve it first", id)
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("lost_item_id = ? OR found_item_id = ?", id, id).
			Delete(&FailedMatch{}).Error; err != nil {
			return err
		}
		var sessions []*NegotiationSession
		if err := tx.Where("lost_item_id = ? OR found_item_id = ?", id, id).
			Find(&sessions).Error; err != nil {
			return err
		}
		for _, s := range sessions {
			if err := tx.Where("session_id = ?", s.ID).Delete(&ReturnSchedule{}).Error; err != nil {
				return err
			}
			if err := tx.Where("session_id = ?", s.ID).Delete(&Notification{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(s).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("item_id = ?", id).Delete(&ItemImage{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Item{}, id).Error
	})
}

// setItemStatuses updates both items of a pair inside the caller's transaction.
func setItemStatuses(tx *gorm.DB, status ItemStatus, itemIds ...int) error {
	return tx.Model(&Item{}).Where("id IN ?", itemIds).
		Update("status", status).Error
}
