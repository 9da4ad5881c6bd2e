package processing

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/RMahshie/cellular/internal/traces"
	"github.com/RMahshie/cellular/pkg/models"
)

// ConnectionResult is the failure analysis of one connection file
type ConnectionResult struct {
	Path     string                    `json:"path"`
	Sweeps   int                       `json:"sweeps"`
	Features models.ConnectionFeatures `json:"features"`
	Failure  models.FailureReport      `json:"failure"`
}

// ProcessConnections analyzes every connection file with at most workers
// files in flight. Results keep the order of paths; the first error
// cancels the remaining files.
func (e Extractor) ProcessConnections(ctx context.Context, paths []string, p *models.AnalysisParams, workers int) ([]ConnectionResult, error) {
	if workers < 1 {
		workers = 1
	}
	results := make([]ConnectionResult, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			set, err := traces.LoadSweeps(path)
			if err != nil {
				return err
			}
			res, err := e.Analyze(models.KindPSP, set, p)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[i] = ConnectionResult{
				Path:     path,
				Sweeps:   len(set.Sweeps),
				Features: *res.Connection,
				Failure:  *res.Failure,
			}
			log.Debug().Str("path", path).Float64("rate", res.Failure.Rate).Msg("Connection analyzed")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
