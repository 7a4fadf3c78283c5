package app

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"quotechart/internal/storage"
)

// Show prints the most recent rows of the quote series to w.
func (a *App) Show(ctx context.Context, w io.Writer, opts ShowOptions) error {
	rows, err := a.loadSeries(ctx)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, "no quote snapshots found")
		return nil
	}

	if opts.Limit > 0 && len(rows) > opts.Limit {
		rows = rows[len(rows)-opts.Limit:]
	}

	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "scraped_at (UTC)\tlast_trade_price\tprice_difference\tage_difference")
	for _, row := range rows {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\n",
			row.ScrapedAt.UTC().Format(time.RFC3339),
			row.LastTradePrice.String(),
			formatPriceDifference(row),
			formatAgeDifference(row),
		)
	}

	return writer.Flush()
}

func formatPriceDifference(row storage.QuoteSeriesRow) string {
	if !row.PriceDifference.Valid {
		return "-"
	}
	return row.PriceDifference.Decimal.String()
}

func formatAgeDifference(row storage.QuoteSeriesRow) string {
	if row.AgeDifference == nil {
		return "-"
	}
	return fmt.Sprintf("%ds", *row.AgeDifference)
}
