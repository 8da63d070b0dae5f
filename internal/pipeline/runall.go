package pipeline

import (
	"context"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/squash/pkg/config"
	"github.com/ajitpratap0/squash/pkg/errors"
	"github.com/ajitpratap0/squash/pkg/logger"
)

// RunAll runs jobs with at most parallelism of them at a time. Each job
// owns its engine, so jobs share nothing. The first failure cancels the
// jobs still running and is returned; results of jobs that did not run are
// nil.
func RunAll(ctx context.Context, jobs []*Job, parallelism int) ([]*Result, error) {
	if parallelism <= 0 {
		parallelism = 1
	}
	results := make([]*Result, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			jobCtx := logger.ContextWithJobID(ctx, strconv.Itoa(i+1))
			res, err := job.Run(jobCtx)
			results[i] = res
			if err != nil {
				return errors.Wrap(err, errors.TypeOf(err), "stream failed").WithDetail("stream", job.Name)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// Run validates cfg and runs every configured stream
func Run(ctx context.Context, cfg *config.Config, log *zap.Logger) ([]*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Pipeline.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Pipeline.Timeout)
		defer cancel()
	}

	jobs := JobsFromConfig(cfg)
	for _, job := range jobs {
		job.Logger = log
	}
	log.Info("running streams",
		zap.Int("streams", len(jobs)),
		zap.Int("parallelism", cfg.Pipeline.Parallelism),
		zap.Uint64("min_block_size_rows", cfg.Squashing.MinBlockSizeRows),
		zap.Uint64("min_block_size_bytes", cfg.Squashing.MinBlockSizeBytes))
	return RunAll(ctx, jobs, cfg.Pipeline.Parallelism)
}
