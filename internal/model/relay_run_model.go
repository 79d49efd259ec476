package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type RelayRun struct {
	Id          uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	MessageId   uuid.UUID      `gorm:"type:uuid;not null;index"`
	Sender      string         `gorm:"type:varchar(128);not null;index"`
	SessionId   uuid.UUID      `gorm:"type:uuid"`
	Outcome     string         `gorm:"type:varchar(20);not null;index"`
	FailedStage *string        `gorm:"type:varchar(20)"`
	Detail      *string        `gorm:"type:text"`
	StageMillis datatypes.JSON `gorm:"type:jsonb"`
	StartedAt   time.Time      `gorm:"not null;index"`
	FinishedAt  time.Time      `gorm:"not null"`
}

func (RelayRun) TableName() string {
	return "relay_runs"
}
