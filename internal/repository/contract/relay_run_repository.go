package contract

import (
	"context"

	"bonfire-agent/internal/entity"
)

// RelayRunRepository is the write-only journal of pipeline runs.
type RelayRunRepository interface {
	Create(ctx context.Context, run *entity.RelayRun) error
}
