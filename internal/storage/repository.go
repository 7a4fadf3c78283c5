package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const quoteSeriesSQL = `SELECT
        scraped_at,
        last_trade_price,
        LAG(last_trade_price, 1) OVER (ORDER BY scraped_at ASC) AS previous_price,
        (scraped_at - LAG(scraped_at, 1) OVER (ORDER BY scraped_at ASC)) AS age_difference
    FROM quote_snapshots
    WHERE %s
    ORDER BY scraped_at ASC;`

// SeriesQuery bounds the snapshots fed into the window.
type SeriesQuery struct {
	// Since is the inclusive lower bound on scraped_at, in epoch seconds.
	Since int64
	// Symbol restricts the series to one ticker when non-empty.
	Symbol string
}

// QuoteSeriesReader yields the derived quote series.
type QuoteSeriesReader interface {
	QuoteSeries(ctx context.Context, q SeriesQuery) ([]QuoteSeriesRow, error)
}

type placeholderFunc func(n int) string

func sqlitePlaceholder(int) string { return "?" }
func postgresPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

// buildSeriesQuery renders the window query. Filters go in WHERE so LAG only
// sees rows that pass them.
func buildSeriesQuery(q SeriesQuery, ph placeholderFunc) (string, []any) {
	conds := []string{"scraped_at >= " + ph(1)}
	args := []any{q.Since}
	if q.Symbol != "" {
		args = append(args, q.Symbol)
		conds = append(conds, "symbol = "+ph(len(args)))
	}
	return fmt.Sprintf(quoteSeriesSQL, strings.Join(conds, " AND ")), args
}

type resultRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// QuoteSeries runs the window query and returns rows ordered by scraped_at.
func (s *Store) QuoteSeries(ctx context.Context, q SeriesQuery) ([]QuoteSeriesRow, error) {
	switch {
	case s == nil:
		return nil, ErrNotConfigured
	case s.pool != nil:
		query, args := buildSeriesQuery(q, postgresPlaceholder)
		rows, err := s.pool.Query(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("query quote series: %w", err)
		}
		defer rows.Close()
		return collectSeries(rows)
	case s.db != nil:
		query, args := buildSeriesQuery(q, sqlitePlaceholder)
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("query quote series: %w", err)
		}
		defer rows.Close()
		return collectSeries(rows)
	default:
		return nil, ErrNotConfigured
	}
}

func collectSeries(rows resultRows) ([]QuoteSeriesRow, error) {
	series := make([]QuoteSeriesRow, 0)
	for rows.Next() {
		row, err := scanSeriesRow(rows)
		if err != nil {
			return nil, err
		}
		series = append(series, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quote series: %w", err)
	}
	return series, nil
}

func scanSeriesRow(rows resultRows) (QuoteSeriesRow, error) {
	var (
		scrapedAt int64
		price     decimal.Decimal
		prevPrice decimal.NullDecimal
		ageDiff   sql.NullInt64
	)

	if err := rows.Scan(&scrapedAt, &price, &prevPrice, &ageDiff); err != nil {
		return QuoteSeriesRow{}, fmt.Errorf("scan quote series row: %w", err)
	}

	row := QuoteSeriesRow{
		ScrapedAt:      EpochToTime(scrapedAt),
		LastTradePrice: price,
	}
	// PriceDifference must equal LastTradePrice.Sub of the previous row.
	if prevPrice.Valid {
		row.PriceDifference = decimal.NewNullDecimal(price.Sub(prevPrice.Decimal))
	}
	if ageDiff.Valid {
		value := ageDiff.Int64
		row.AgeDifference = &value
	}
	return row, nil
}

var _ QuoteSeriesReader = (*Store)(nil)
