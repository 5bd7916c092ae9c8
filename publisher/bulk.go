package publisher

import (
	"context"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// BulkReport summarises a bulk run. Processed counts successful items.
type BulkReport struct {
	Processed int       `json:"processed"`
	Outcomes  []Outcome `json:"outcomes"`
}

// RunBulk generates descriptions for ids with the role check overridden,
// running at most workers invocations at once. Outcomes keep the order of ids.
func (p *Publisher) RunBulk(ctx context.Context, ids []int64, workers int) BulkReport {
	if workers < 1 {
		workers = 1
	}
	outcomes := make([]Outcome, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, id := range ids {
		g.Go(func() error {
			outcomes[i] = p.GenerateDescription(gctx, Request{ItemID: id, Override: true})
			return nil
		})
	}
	_ = g.Wait()

	report := BulkReport{Outcomes: outcomes}
	for _, o := range outcomes {
		if o.Success {
			report.Processed++
		}
	}
	log.Info().Int("requested", len(ids)).Int("processed", report.Processed).Msg("Bulk generation finished")
	return report
}
