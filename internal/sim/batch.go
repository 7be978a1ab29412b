package sim

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Job is one independent run inside a batch.
type Job struct {
	Name   string
	Runner *Runner
	Config Config
}

// RunBatch runs independent jobs concurrently, at most limit at a time
// (limit <= 0 means no limit). Results are in job order. The first failure
// cancels the jobs still running.
func RunBatch(ctx context.Context, jobs []Job, limit int) ([]*Result, error) {
	results := make([]*Result, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, job := range jobs {
		g.Go(func() error {
			res, err := job.Runner.Run(ctx, job.Config)
			results[i] = res
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
