package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"quotechart/internal/chart"
	"quotechart/internal/config"
	"quotechart/internal/logging"
	"quotechart/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	// Viewer overrides the configured chart viewer when set.
	Viewer chart.Viewer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logging.Component(logger, "app")}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	store, err := storage.Open(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	a.Logger.Debug().Str("backend", store.Backend()).Msg("quote store opened")
	closer := func() {
		if err := store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("close quote store")
		}
	}
	return store, closer, nil
}

func (a *App) seriesQuery() storage.SeriesQuery {
	return storage.SeriesQuery{
		Since:  a.Config.Query.Since,
		Symbol: a.Config.Query.Symbol,
	}
}

// loadSeries runs the connector and query stages.
func (a *App) loadSeries(ctx context.Context) ([]storage.QuoteSeriesRow, error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer closeStore()

	q := a.seriesQuery()
	rows, err := store.QuoteSeries(ctx, q)
	if err != nil {
		return nil, err
	}

	a.Logger.Info().
		Int("rows", len(rows)).
		Int64("since", q.Since).
		Str("symbol", q.Symbol).
		Msg("quote series loaded")
	return rows, nil
}

func (a *App) chartOptions() (chart.Options, error) {
	series, err := chart.ParseSeries(a.Config.Chart.Series)
	if err != nil {
		return chart.Options{}, fmt.Errorf("chart.series: %w", err)
	}
	return chart.Options{
		Title:  a.Config.Chart.Title,
		Width:  a.Config.Chart.Width,
		Height: a.Config.Chart.Height,
		Series: series,
		Anchor: storage.EpochToTime(a.Config.Query.Since),
	}, nil
}

func (a *App) viewer() chart.Viewer {
	if a.Viewer != nil {
		return a.Viewer
	}
	return chart.NewCommandViewer(a.Config.Display, a.Logger)
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
