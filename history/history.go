// Package history keeps the rate points behind the dashboard graphs.
package history

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidQuery is returned for a query without a series or with an
// inverted time window.
var ErrInvalidQuery = errors.New("invalid history query")

// Point is the rate of one series at one telemetry timestamp.
type Point struct {
	Series          string  `json:"series"`
	TimestampMillis int64   `json:"timestampMillis"`
	BitsPerSec      float64 `json:"bitsPerSec"`
	ItemsPerSec     float64 `json:"itemsPerSec"`
}

// Query selects the points of one series with From <= ts <= To. A zero To
// means no upper bound and a zero Limit means no limit.
type Query struct {
	Series     string
	FromMillis int64
	ToMillis   int64
	Limit      int
}

// Validate checks the query.
func (q Query) Validate() error {
	if q.Series == "" {
		return fmt.Errorf("%w: series is required", ErrInvalidQuery)
	}
	if q.ToMillis != 0 && q.ToMillis < q.FromMillis {
		return fmt.Errorf("%w: to %d is before from %d", ErrInvalidQuery, q.ToMillis, q.FromMillis)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidQuery)
	}
	return nil
}

func (q Query) contains(ts int64) bool {
	return ts >= q.FromMillis && (q.ToMillis == 0 || ts <= q.ToMillis)
}

// Store persists rate points.
type Store interface {
	// Write stores points, replacing any point with the same series and
	// timestamp.
	Write(ctx context.Context, points []Point) error
	Query(ctx context.Context, q Query) ([]Point, error)
	// Series lists every series name in sorted order.
	Series(ctx context.Context) ([]string, error)
	// Prune drops points older than beforeMillis.
	Prune(ctx context.Context, beforeMillis int64) (int, error)
	// Backend names the store for metrics and logs.
	Backend() string
	Close() error
}

// SummarySeries names the series of a relay-wide summary rate.
func SummarySeries(key string) string {
	return "summary/" + key
}

// InductSeries names the series of one connection on an induct.
func InductSeries(index int, conn string) string {
	return "induct/" + strconv.Itoa(index) + "/" + conn
}

// OutductSeries names the acked-bytes series of an outduct.
func OutductSeries(index int) string {
	return "outduct/" + strconv.Itoa(index)
}
