package mapper

import (
	"encoding/json"

	"bonfire-agent/internal/entity"
	"bonfire-agent/internal/model"

	"gorm.io/datatypes"
)

type RelayRunMapper struct{}

func NewRelayRunMapper() *RelayRunMapper {
	return &RelayRunMapper{}
}

func (m *RelayRunMapper) RelayRunToModel(r *entity.RelayRun) *model.RelayRun {
	if r == nil {
		return nil
	}

	var failedStage *string
	if r.FailedStage != "" {
		s := r.FailedStage
		failedStage = &s
	}

	var detail *string
	if r.Detail != "" {
		d := r.Detail
		detail = &d
	}

	stages, _ := json.Marshal(r.StageMillis)

	return &model.RelayRun{
		Id:          r.Id,
		MessageId:   r.MessageId,
		Sender:      r.Sender,
		SessionId:   r.Session,
		Outcome:     string(r.Outcome),
		FailedStage: failedStage,
		Detail:      detail,
		StageMillis: datatypes.JSON(stages),
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
	}
}
