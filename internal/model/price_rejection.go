package model

import (
	"time"

	"gorm.io/datatypes"
)

type PriceRejection struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Symbol        string         `gorm:"type:varchar(32);not null;index" json:"symbol"`
	RejectedValue float64        `gorm:"not null" json:"rejected_value"`
	ExpectedKind  string         `gorm:"type:varchar(32);not null" json:"expected_kind"`
	Codepath      string         `gorm:"type:varchar(64);not null" json:"codepath"`
	Reason        string         `gorm:"type:text;not null" json:"reason"`
	Payload       datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	OccurredAt    time.Time      `gorm:"not null" json:"occurred_at"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (PriceRejection) TableName() string {
	return "price_rejections"
}
