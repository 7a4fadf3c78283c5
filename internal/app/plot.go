package app

import (
	"context"
	"os/signal"
	"syscall"

	"quotechart/internal/chart"
)

// Plot loads the quote series and shows the price chart, blocking until the
// viewer is dismissed.
func (a *App) Plot(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts, err := a.chartOptions()
	if err != nil {
		return err
	}

	rows, err := a.loadSeries(ctx)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		a.Logger.Warn().Msg("no quote snapshots at or after threshold; plotting empty series")
	}

	if err := chart.Display(ctx, a.viewer(), rows, opts); err != nil {
		return err
	}

	a.Logger.Debug().Msg("chart dismissed")
	return nil
}
