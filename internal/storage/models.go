package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuoteSnapshot is one captured observation as written by the collector.
type QuoteSnapshot struct {
	Symbol         string
	ScrapedAt      int64
	LastTradePrice decimal.Decimal
}

// QuoteSeriesRow is a snapshot enriched with deltas against the preceding
// snapshot in scraped_at order. The first row of a series has no deltas.
type QuoteSeriesRow struct {
	ScrapedAt       time.Time
	LastTradePrice  decimal.Decimal
	PriceDifference decimal.NullDecimal
	AgeDifference   *int64
}

// EpochToTime converts collector epoch seconds to UTC calendar time.
func EpochToTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

// TimeToEpoch is the inverse of EpochToTime.
func TimeToEpoch(t time.Time) int64 {
	return t.Unix()
}
