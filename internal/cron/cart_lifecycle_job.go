package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/grubsquad/grubsquad-backend/internal/carts"
	"github.com/grubsquad/grubsquad-backend/pkg/db/models"
	"github.com/grubsquad/grubsquad-backend/pkg/enums"
	"github.com/grubsquad/grubsquad-backend/pkg/logger"
)

const lifecycleBatchSize = 100

type lifecycleRepo interface {
	ListScheduledDrafts(ctx context.Context) ([]models.Cart, error)
	BatchUpdateStatus(ctx context.Context, ids []uuid.UUID, status enums.CartStatus) error
}

// CartLifecycleJobParams configure the abandoned-cart sweep.
type CartLifecycleJobParams struct {
	Logger     *logger.Logger
	Repository lifecycleRepo
	GraceHours int
}

// NewCartLifecycleJob flips scheduled drafts whose fulfillment time has
// passed to abandoned, in batches.
func NewCartLifecycleJob(params CartLifecycleJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	grace := params.GraceHours
	if grace < 0 {
		grace = 0
	}
	return &cartLifecycleJob{
		logg:  params.Logger,
		repo:  params.Repository,
		grace: time.Duration(grace) * time.Hour,
		now:   time.Now,
	}, nil
}

type cartLifecycleJob struct {
	logg  *logger.Logger
	repo  lifecycleRepo
	grace time.Duration
	now   func() time.Time
}

func (j *cartLifecycleJob) Name() string { return "cart-lifecycle" }

func (j *cartLifecycleJob) Run(ctx context.Context) error {
	drafts, err := j.repo.ListScheduledDrafts(ctx)
	if err != nil {
		return fmt.Errorf("list scheduled drafts: %w", err)
	}

	// A derived abandon only counts once the schedule is at least the
	// grace period in the past.
	cutoff := j.now().Add(-j.grace)
	var stale []uuid.UUID
	for i := range drafts {
		if carts.EffectiveCartStatus(&drafts[i], cutoff) == enums.CartStatusAbandoned {
			stale = append(stale, drafts[i].ID)
		}
	}
	if len(stale) == 0 {
		j.logg.Info(ctx, "no stale drafts")
		return nil
	}

	var combined error
	flipped := 0
	for start := 0; start < len(stale); start += lifecycleBatchSize {
		end := start + lifecycleBatchSize
		if end > len(stale) {
			end = len(stale)
		}
		batch := stale[start:end]
		if err := j.repo.BatchUpdateStatus(ctx, batch, enums.CartStatusAbandoned); err != nil {
			combined = multierr.Append(combined, fmt.Errorf("batch %d-%d: %w", start, end, err))
			continue
		}
		flipped += len(batch)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned": len(drafts),
		"stale":   len(stale),
		"flipped": flipped,
	})
	j.logg.Info(logCtx, "cart lifecycle sweep complete")
	return combined
}
