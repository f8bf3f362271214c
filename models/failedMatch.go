package models

import (
	"time"

	"gorm.io/gorm"
)

// FailedMatch records a lost/found pair whose negotiation ended without a
// confirmed match. The matcher skips recorded pairs so they are never
// re-proposed automatically; a force-match still overrides the record.
type FailedMatch struct {
	ID          int       `gorm:"primary_key" json:"id"`
	LostItemId  int       `gorm:"not null;index:idx_failed_pair,unique" json:"lost_item_id"`
	FoundItemId int       `gorm:"not null;index:idx_failed_pair,unique" json:"found_item_id"`
	Reason      string    `gorm:"size:500" json:"reason,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func RecordFailedMatch(tx *gorm.DB, lostItemId, foundItemId int, reason string) error {
	var existing int64
	err := tx.Model(&FailedMatch{}).
		Where("lost_item_id = ? AND found_item_id = ?", lostItemId, foundItemId).
		Count(&existing).Error
	if err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}
	fm := FailedMatch{LostItemId: lostItemId, FoundItemId: foundItemId, Reason: reason}
	return tx.Create(&fm).Error
}
