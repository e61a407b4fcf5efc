package cron

import (
	"context"
	"fmt"

	"github.com/festworks/festpass-backend/pkg/logger"
)

type statusNormalizationRepo interface {
	NormalizeLegacyStatuses(ctx context.Context) (int64, error)
}

// StatusNormalizationJobParams configure the nightly status repair job.
type StatusNormalizationJobParams struct {
	Logger     *logger.Logger
	Repository statusNormalizationRepo
}

// NewStatusNormalizationJob builds the job that rewrites legacy success
// spellings in the payment audit trail to the canonical status, so the
// reconciliation backfill keeps matching rows ingested before
// canonicalization existed.
func NewStatusNormalizationJob(params StatusNormalizationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("payment log repository required")
	}
	return &statusNormalizationJob{
		logg: params.Logger,
		repo: params.Repository,
	}, nil
}

type statusNormalizationJob struct {
	logg *logger.Logger
	repo statusNormalizationRepo
}

func (j *statusNormalizationJob) Name() string { return "payment-status-normalization" }

func (j *statusNormalizationJob) Run(ctx context.Context) error {
	repaired, err := j.repo.NormalizeLegacyStatuses(ctx)
	if err != nil {
		return fmt.Errorf("status normalization: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "rows_repaired", repaired)
	j.logg.Info(logCtx, "payment status normalization complete")
	return nil
}
