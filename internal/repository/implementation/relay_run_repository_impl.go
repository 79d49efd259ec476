package implementation

import (
	"context"

	"bonfire-agent/internal/entity"
	"bonfire-agent/internal/mapper"
	"bonfire-agent/internal/repository/contract"

	"gorm.io/gorm"
)

type RelayRunRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.RelayRunMapper
}

func NewRelayRunRepository(db *gorm.DB) contract.RelayRunRepository {
	return &RelayRunRepositoryImpl{
		db:     db,
		mapper: mapper.NewRelayRunMapper(),
	}
}

func (r *RelayRunRepositoryImpl) Create(ctx context.Context, run *entity.RelayRun) error {
	m := r.mapper.RelayRunToModel(run)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	run.Id = m.Id
	return nil
}

// NoopRelayRunRepository discards runs. Used when no database is configured.
type NoopRelayRunRepository struct{}

func NewNoopRelayRunRepository() contract.RelayRunRepository {
	return NoopRelayRunRepository{}
}

func (NoopRelayRunRepository) Create(ctx context.Context, run *entity.RelayRun) error {
	return nil
}
