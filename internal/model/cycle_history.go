package model

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"
)

type CycleStatus string

const (
	CycleStatusRunning   CycleStatus = "running"
	CycleStatusCompleted CycleStatus = "completed"
	CycleStatusFailed    CycleStatus = "failed"
	CycleStatusSkipped   CycleStatus = "skipped"
)

type CycleTrigger string

const (
	CycleTriggerSchedule  CycleTrigger = "schedule"
	CycleTriggerManual    CycleTrigger = "manual"
	CycleTriggerTestTrade CycleTrigger = "test_trade"
)

type CycleHistory struct {
	ID                   uint           `gorm:"primaryKey" json:"id"`
	CycleID              string         `gorm:"type:varchar(36);not null;uniqueIndex" json:"cycle_id"`
	Trigger              CycleTrigger   `gorm:"type:varchar(16);not null" json:"trigger"`
	Status               CycleStatus    `gorm:"type:varchar(16);not null" json:"status"`
	MarketOpen           bool           `gorm:"not null" json:"market_open"`
	StartedAt            time.Time      `gorm:"not null" json:"started_at"`
	CompletedAt          sql.NullTime   `json:"completed_at"`
	AutomationsEvaluated int            `gorm:"not null;default:0" json:"automations_evaluated"`
	PositionsOpened      int            `gorm:"not null;default:0" json:"positions_opened"`
	PositionsClosed      int            `gorm:"not null;default:0" json:"positions_closed"`
	Failures             int            `gorm:"not null;default:0" json:"failures"`
	Output               datatypes.JSON `gorm:"type:jsonb" json:"output"`
	ErrorMessage         sql.NullString `gorm:"type:text" json:"error_message"`
	CreatedAt            time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (CycleHistory) TableName() string {
	return "cycle_histories"
}
