package postgres

import (
	"context"
	"fmt"
)

// RatePoint is one row of the rate history table
type RatePoint struct {
	Series          string
	TimestampMillis int64
	BitsPerSec      float64
	ItemsPerSec     float64
}

// SaveRatePoints inserts points in one transaction. A point that already
// exists for the same series and timestamp is overwritten.
func (db *DB) SaveRatePoints(ctx context.Context, points []RatePoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO dtnview_rate_history (series, ts_millis, bits_per_sec, items_per_sec)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (series, ts_millis) DO UPDATE
		SET bits_per_sec = $3, items_per_sec = $4, recorded_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if p.Series == "" {
			return fmt.Errorf("series cannot be empty")
		}
		if _, err := stmt.ExecContext(ctx, p.Series, p.TimestampMillis, p.BitsPerSec, p.ItemsPerSec); err != nil {
			return fmt.Errorf("failed to save rate point %s@%d: %w", p.Series, p.TimestampMillis, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rate points: %w", err)
	}
	return nil
}

// QueryRatePoints returns the points of series with from <= ts <= to in
// timestamp order. A to of zero means no upper bound; a limit of zero
// means no limit.
func (db *DB) QueryRatePoints(ctx context.Context, series string, from, to int64, limit int) ([]RatePoint, error) {
	if series == "" {
		return nil, fmt.Errorf("series cannot be empty")
	}

	query := `
		SELECT series, ts_millis, bits_per_sec, items_per_sec
		FROM dtnview_rate_history
		WHERE series = $1 AND ts_millis >= $2 AND ($3 = 0 OR ts_millis <= $3)
		ORDER BY ts_millis ASC
	`
	args := []interface{}{series, from, to}
	if limit > 0 {
		query += " LIMIT $4"
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rate points: %w", err)
	}
	defer rows.Close()

	var points []RatePoint
	for rows.Next() {
		var p RatePoint
		if err := rows.Scan(&p.Series, &p.TimestampMillis, &p.BitsPerSec, &p.ItemsPerSec); err != nil {
			return nil, fmt.Errorf("failed to scan rate point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rate points: %w", err)
	}
	return points, nil
}

// ListRateSeries returns every series name in sorted order
func (db *DB) ListRateSeries(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT DISTINCT series FROM dtnview_rate_history ORDER BY series`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rate series: %w", err)
	}
	defer rows.Close()

	var series []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan series: %w", err)
		}
		series = append(series, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating series: %w", err)
	}
	return series, nil
}

// DeleteRatePointsBefore removes points older than before and returns how
// many were deleted
func (db *DB) DeleteRatePointsBefore(ctx context.Context, before int64) (int64, error) {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM dtnview_rate_history WHERE ts_millis < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete rate points: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}
