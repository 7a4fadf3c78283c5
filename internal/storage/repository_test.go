package storage

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quotechart/internal/config"
)

const testSince int64 = 1675175400

const createQuoteSnapshotsSQL = `CREATE TABLE quote_snapshots (
    symbol TEXT NOT NULL,
    scraped_at INTEGER NOT NULL,
    ask_price REAL,
    bid_price REAL,
    last_trade_price REAL NOT NULL,
    PRIMARY KEY (symbol, scraped_at)
);`

func seedStore(t *testing.T, snapshots []QuoteSnapshot) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "database.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(createQuoteSnapshotsSQL)
	require.NoError(t, err)

	for _, s := range snapshots {
		symbol := s.Symbol
		if symbol == "" {
			symbol = "SPY"
		}
		price, _ := s.LastTradePrice.Float64()
		_, err := db.Exec(
			`INSERT INTO quote_snapshots (symbol, scraped_at, ask_price, bid_price, last_trade_price) VALUES (?, ?, ?, ?, ?)`,
			symbol, s.ScrapedAt, price, price, price,
		)
		require.NoError(t, err)
	}
	return path
}

func openSeeded(t *testing.T, snapshots []QuoteSnapshot) *Store {
	t.Helper()
	store, err := Open(context.Background(), config.DatabaseConfig{Path: seedStore(t, snapshots)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func snap(at int64, price string) QuoteSnapshot {
	return QuoteSnapshot{ScrapedAt: at, LastTradePrice: decimal.RequireFromString(price)}
}

func TestQuoteSeriesThreeRowScenario(t *testing.T) {
	store := openSeeded(t, []QuoteSnapshot{
		snap(1675175400, "10.0"),
		snap(1675175460, "12.0"),
		snap(1675175520, "11.0"),
	})

	rows, err := store.QuoteSeries(context.Background(), SeriesQuery{Since: testSince})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, EpochToTime(1675175400), rows[0].ScrapedAt)
	assert.True(t, rows[0].LastTradePrice.Equal(decimal.NewFromInt(10)))
	assert.False(t, rows[0].PriceDifference.Valid)
	assert.Nil(t, rows[0].AgeDifference)

	assert.True(t, rows[1].LastTradePrice.Equal(decimal.NewFromInt(12)))
	require.True(t, rows[1].PriceDifference.Valid)
	assert.True(t, rows[1].PriceDifference.Decimal.Equal(decimal.NewFromInt(2)), rows[1].PriceDifference.Decimal.String())
	require.NotNil(t, rows[1].AgeDifference)
	assert.Equal(t, int64(60), *rows[1].AgeDifference)

	assert.True(t, rows[2].LastTradePrice.Equal(decimal.NewFromInt(11)))
	require.True(t, rows[2].PriceDifference.Valid)
	assert.True(t, rows[2].PriceDifference.Decimal.Equal(decimal.NewFromInt(-1)), rows[2].PriceDifference.Decimal.String())
	require.NotNil(t, rows[2].AgeDifference)
	assert.Equal(t, int64(60), *rows[2].AgeDifference)
}

func TestQuoteSeriesExcludesRowsBeforeThreshold(t *testing.T) {
	store := openSeeded(t, []QuoteSnapshot{
		snap(testSince-60, "9.0"),
		snap(testSince, "10.0"),
		snap(testSince+30, "10.5"),
	})

	rows, err := store.QuoteSeries(context.Background(), SeriesQuery{Since: testSince})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, EpochToTime(testSince), rows[0].ScrapedAt)
	assert.False(t, rows[0].PriceDifference.Valid, "the filtered-out predecessor must not feed the lookback")
	assert.Nil(t, rows[0].AgeDifference)

	require.NotNil(t, rows[1].AgeDifference)
	assert.Equal(t, int64(30), *rows[1].AgeDifference)
	assert.True(t, rows[1].PriceDifference.Decimal.Equal(decimal.RequireFromString("0.5")))
}

func TestQuoteSeriesOrderingAndDeltas(t *testing.T) {
	// inserted out of order, with a gap and a below-threshold row
	input := []QuoteSnapshot{
		snap(testSince+300, "401.25"),
		snap(testSince+5, "400.00"),
		snap(testSince-1, "1.00"),
		snap(testSince+65, "400.75"),
		snap(testSince+1, "399.50"),
		snap(testSince+3600, "402.00"),
	}
	store := openSeeded(t, input)

	rows, err := store.QuoteSeries(context.Background(), SeriesQuery{Since: testSince})
	require.NoError(t, err)

	expected := 0
	for _, s := range input {
		if s.ScrapedAt >= testSince {
			expected++
		}
	}
	require.Len(t, rows, expected)

	for i := 1; i < len(rows); i++ {
		prev, cur := rows[i-1], rows[i]
		assert.False(t, cur.ScrapedAt.Before(prev.ScrapedAt), "row %d out of order", i)

		require.True(t, cur.PriceDifference.Valid)
		assert.True(t, cur.PriceDifference.Decimal.Equal(cur.LastTradePrice.Sub(prev.LastTradePrice)),
			"row %d price difference %s", i, cur.PriceDifference.Decimal)

		require.NotNil(t, cur.AgeDifference)
		assert.Equal(t, TimeToEpoch(cur.ScrapedAt)-TimeToEpoch(prev.ScrapedAt), *cur.AgeDifference)
	}
}

func TestQuoteSeriesSymbolFilter(t *testing.T) {
	store := openSeeded(t, []QuoteSnapshot{
		{Symbol: "SPY", ScrapedAt: testSince, LastTradePrice: decimal.NewFromInt(400)},
		{Symbol: "QQQ", ScrapedAt: testSince + 1, LastTradePrice: decimal.NewFromInt(300)},
		{Symbol: "SPY", ScrapedAt: testSince + 2, LastTradePrice: decimal.NewFromInt(401)},
	})

	rows, err := store.QuoteSeries(context.Background(), SeriesQuery{Since: testSince, Symbol: "SPY"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NotNil(t, rows[1].AgeDifference)
	assert.Equal(t, int64(2), *rows[1].AgeDifference)
	assert.True(t, rows[1].PriceDifference.Decimal.Equal(decimal.NewFromInt(1)))
}

func TestQuoteSeriesEmpty(t *testing.T) {
	store := openSeeded(t, []QuoteSnapshot{snap(testSince-10, "1.0")})

	rows, err := store.QuoteSeries(context.Background(), SeriesQuery{Since: testSince})
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestQuoteSeriesMissingTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE candles (timestamp INTEGER)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	store, err := Open(context.Background(), config.DatabaseConfig{Path: path})
	require.NoError(t, err)
	defer store.Close()

	_, err = store.QuoteSeries(context.Background(), SeriesQuery{Since: testSince})
	assert.Error(t, err)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "nope.db")})
	assert.ErrorIs(t, err, ErrStoreNotFound)

	_, err = Open(context.Background(), config.DatabaseConfig{Path: t.TempDir()})
	assert.ErrorIs(t, err, ErrStoreNotFound)
}

func TestOpenCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.db")
	junk := bytes.Repeat([]byte("not a quote store "), 256)
	require.NoError(t, os.WriteFile(path, junk, 0o600))

	_, err := Open(context.Background(), config.DatabaseConfig{Path: path})
	assert.Error(t, err)
}

func TestOpenIsReadOnly(t *testing.T) {
	store := openSeeded(t, []QuoteSnapshot{snap(testSince, "10.0")})
	assert.Equal(t, "sqlite", store.Backend())

	_, err := store.db.Exec(`INSERT INTO quote_snapshots (symbol, scraped_at, last_trade_price) VALUES ('SPY', 1, 1.0)`)
	assert.Error(t, err)
}

func TestOpenInvalidDSN(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{DSN: "postgres://%zz", ConnectTimeout: time.Second})
	assert.Error(t, err)
}

func TestNilStore(t *testing.T) {
	var store *Store
	_, err := store.QuoteSeries(context.Background(), SeriesQuery{})
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.NoError(t, store.Close())
	assert.Equal(t, "none", store.Backend())
}

func TestBuildSeriesQuery(t *testing.T) {
	query, args := buildSeriesQuery(SeriesQuery{Since: 5, Symbol: "SPY"}, postgresPlaceholder)
	assert.Contains(t, query, "scraped_at >= $1 AND symbol = $2")
	assert.Equal(t, []any{int64(5), "SPY"}, args)

	query, args = buildSeriesQuery(SeriesQuery{Since: 5}, sqlitePlaceholder)
	assert.Contains(t, query, "WHERE scraped_at >= ?\n")
	assert.NotContains(t, query, "symbol")
	assert.Equal(t, []any{int64(5)}, args)
}

func TestEpochRoundTrip(t *testing.T) {
	for _, sec := range []int64{0, 1, testSince, testSince + 59, 4102444800} {
		converted := EpochToTime(sec)
		assert.Equal(t, time.UTC, converted.Location())
		assert.Equal(t, sec, TimeToEpoch(converted))
	}
	assert.Equal(t, time.Date(2023, time.January, 31, 14, 30, 0, 0, time.UTC), EpochToTime(testSince))
}

func TestQuoteSeriesCentMovesMatchDecimalPrices(t *testing.T) {
	store := openSeeded(t, []QuoteSnapshot{
		snap(testSince, "10.10"),
		snap(testSince+1, "10.20"),
		snap(testSince+2, "412.33"),
		snap(testSince+3, "412.34"),
	})

	rows, err := store.QuoteSeries(context.Background(), SeriesQuery{Since: testSince})
	require.NoError(t, err)
	require.Len(t, rows, 4)

	want := []string{"0.1", "402.13", "0.01"}
	for i := 1; i < len(rows); i++ {
		diff := rows[i].PriceDifference
		require.True(t, diff.Valid, "row %d", i)
		assert.True(t, diff.Decimal.Equal(rows[i].LastTradePrice.Sub(rows[i-1].LastTradePrice)),
			"row %d price difference %s", i, diff.Decimal)
		assert.Equal(t, want[i-1], diff.Decimal.String(), "row %d", i)
	}
}

type fakeRows struct {
	values [][]any
	pos    int
	err    error
}

func (f *fakeRows) Next() bool {
	if f.pos >= len(f.values) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeRows) Scan(dest ...any) error {
	row := f.values[f.pos-1]
	*dest[0].(*int64) = row[0].(int64)
	for i := 1; i < len(dest); i++ {
		scanner, ok := dest[i].(sql.Scanner)
		if !ok {
			return fmt.Errorf("column %d: unexpected destination %T", i, dest[i])
		}
		if err := scanner.Scan(row[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeRows) Err() error { return f.err }

func TestCollectSeriesDriverValues(t *testing.T) {
	// text numerics and int64 deltas as pgx hands them to sql.Scanner targets
	rows := &fakeRows{values: [][]any{
		{testSince, "412.33", nil, nil},
		{testSince + 60, "412.34", "412.33", int64(60)},
	}}

	series, err := collectSeries(rows)
	require.NoError(t, err)
	require.Len(t, series, 2)

	assert.False(t, series[0].PriceDifference.Valid)
	assert.Nil(t, series[0].AgeDifference)

	require.True(t, series[1].PriceDifference.Valid)
	assert.Equal(t, "0.01", series[1].PriceDifference.Decimal.String())
	require.NotNil(t, series[1].AgeDifference)
	assert.Equal(t, int64(60), *series[1].AgeDifference)
	assert.Equal(t, EpochToTime(testSince+60), series[1].ScrapedAt)
}

func TestCollectSeriesPropagatesErrors(t *testing.T) {
	_, err := collectSeries(&fakeRows{err: errors.New("connection reset")})
	assert.ErrorContains(t, err, "connection reset")

	_, err = collectSeries(&fakeRows{values: [][]any{{testSince, "not-a-number", nil, nil}}})
	assert.Error(t, err)
}
