package models

import (
	"strings"
	"time"

	"github.com/campuslab/lostfound_backend/utils"
)

type ReturnSchedule struct {
	ID           int            `gorm:"primary_key" json:"id"`
	SessionId    int            `gorm:"not null;index" json:"session_id"`
	ProposedTime time.Time      `gorm:"not null" json:"proposed_time"`
	Location     string         `gorm:"size:200;not null" json:"proposed_location"`
	Note         string         `gorm:"size:500" json:"notes,omitempty"`
	Status       ScheduleStatus `gorm:"type:enum('PENDING','APPROVED','REJECTED');not null;default:PENDING" json:"status"`
	RejectReason string         `gorm:"size:500" json:"reject_reason,omitempty"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSchedule struct {
	ProposedTime time.Time `json:"proposed_time" binding:"required"`
	Location     string    `json:"proposed_location" binding:"required"`
	Note         string    `json:"notes"`
}

func (in *NewSchedule) Validate() error {
	if in.ProposedTime.IsZero() {
		return utils.ValidationError("proposed_time is required")
	}
	if strings.TrimSpace(in.Location) == "" {
		return utils.ValidationError("location is required")
	}
	return nil
}

type ScheduleRejection struct {
	Reason string `json:"reason" binding:"required"`
}

func (in *ScheduleRejection) Validate() error {
	if strings.TrimSpace(in.Reason) == "" {
		return utils.ValidationError("a rejection reason is required")
	}
	return nil
}
