package chart

import (
	"context"
	"fmt"
	"os"

	"quotechart/internal/storage"
)

// DetachedViewer is implemented by viewers whose Show can return while the
// chart is still open, such as launchers like xdg-open.
type DetachedViewer interface {
	Viewer
	Detached() bool
}

// Display renders rows to a temporary PNG and shows it with viewer. The file
// is removed once the viewer is dismissed, unless the viewer is detached.
func Display(ctx context.Context, viewer Viewer, rows []storage.QuoteSeriesRow, opts Options) error {
	file, err := os.CreateTemp("", "quote_snapshots-*.png")
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	path := file.Name()
	if d, ok := viewer.(DetachedViewer); !ok || !d.Detached() {
		defer os.Remove(path)
	}

	if err := Render(file, rows, opts); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close chart file: %w", err)
	}

	return viewer.Show(ctx, path)
}
