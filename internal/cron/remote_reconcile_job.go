package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"

	"github.com/grubsquad/grubsquad-backend/pkg/db/models"
	"github.com/grubsquad/grubsquad-backend/pkg/logger"
)

const (
	defaultReconcileAttempts  = 3
	defaultReconcileBatchSize = 50
	reconcileBaseBackoff      = 500 * time.Millisecond
)

type reconcileRepo interface {
	ListCartsNeedingRemoteReconcile(ctx context.Context, limit int) ([]models.Cart, error)
}

type remoteReconciler interface {
	ReconcileRemoteCart(ctx context.Context, cartID uuid.UUID) error
}

// RemoteReconcileJobParams configure the remote mirror repair sweep.
type RemoteReconcileJobParams struct {
	Logger     *logger.Logger
	Repository reconcileRepo
	Reconciler remoteReconciler
	Attempts   int
	BatchSize  int
}

// NewRemoteReconcileJob repairs provider-backed carts whose items never
// received a remote line id, retrying each cart with fibonacci backoff.
func NewRemoteReconcileJob(params RemoteReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	attempts := params.Attempts
	if attempts <= 0 {
		attempts = defaultReconcileAttempts
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultReconcileBatchSize
	}
	return &remoteReconcileJob{
		logg:       params.Logger,
		repo:       params.Repository,
		reconciler: params.Reconciler,
		attempts:   uint64(attempts),
		batchSize:  batchSize,
	}, nil
}

type remoteReconcileJob struct {
	logg       *logger.Logger
	repo       reconcileRepo
	reconciler remoteReconciler
	attempts   uint64
	batchSize  int
}

func (j *remoteReconcileJob) Name() string { return "remote-reconcile" }

func (j *remoteReconcileJob) Run(ctx context.Context) error {
	pending, err := j.repo.ListCartsNeedingRemoteReconcile(ctx, j.batchSize)
	if err != nil {
		return fmt.Errorf("list unmirrored carts: %w", err)
	}
	if len(pending) == 0 {
		j.logg.Info(ctx, "no carts need remote reconcile")
		return nil
	}

	var combined error
	repaired := 0
	for i := range pending {
		cartID := pending[i].ID
		backoff := retry.WithMaxRetries(j.attempts, retry.NewFibonacci(reconcileBaseBackoff))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			if err := j.reconciler.ReconcileRemoteCart(ctx, cartID); err != nil {
				return retry.RetryableError(err)
			}
			return nil
		})
		if err != nil {
			combined = multierr.Append(combined, fmt.Errorf("cart %s: %w", cartID, err))
			continue
		}
		repaired++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"pending":  len(pending),
		"repaired": repaired,
	})
	j.logg.Info(logCtx, "remote reconcile sweep complete")
	return combined
}
