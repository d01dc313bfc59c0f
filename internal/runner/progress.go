package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/parcel-routing/route-optimizer/backend/internal/domain"
	"github.com/parcel-routing/route-optimizer/backend/internal/optimizer"
	"github.com/redis/go-redis/v9"
)

var ErrNoProgress = errors.New("no progress recorded")

func ProgressKey(runID uuid.UUID) string {
	return fmt.Sprintf("run:%s:progress", runID)
}

func NewProgress(s optimizer.GenerationStats, generations int) domain.RunProgress {
	return domain.RunProgress{
		Generation:  s.Generation,
		Generations: generations,
		BestCost:    s.BestCost,
		MeanCost:    s.MeanCost,
		StdDevCost:  s.StdDevCost,
		UpdatedAt:   time.Now(),
	}
}

func SaveProgress(ctx context.Context, rdb *redis.Client, runID uuid.UUID, p domain.RunProgress, ttl time.Duration) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, ProgressKey(runID), data, ttl).Err()
}

func LoadProgress(ctx context.Context, rdb *redis.Client, runID uuid.UUID) (*domain.RunProgress, error) {
	data, err := rdb.Get(ctx, ProgressKey(runID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoProgress
		}
		return nil, err
	}

	var p domain.RunProgress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
