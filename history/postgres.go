package history

import (
	"context"
	"fmt"

	"github.com/xiaonanln/dtnview/util/postgres"
)

// BackendPostgres is the name of the PostgreSQL store.
const BackendPostgres = "postgres"

// PostgresStore keeps points in the dtnview_rate_history table.
type PostgresStore struct {
	db *postgres.DB
}

// OpenPostgresStore connects, checks the connection and creates the schema.
func OpenPostgresStore(ctx context.Context, cfg *postgres.Config) (*PostgresStore, error) {
	db, err := postgres.NewDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	if err := db.InitSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return NewPostgresStore(db), nil
}

// NewPostgresStore wraps an open database.
func NewPostgresStore(db *postgres.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Backend() string {
	return BackendPostgres
}

func (s *PostgresStore) Write(ctx context.Context, points []Point) error {
	rows := make([]postgres.RatePoint, len(points))
	for i, p := range points {
		rows[i] = postgres.RatePoint(p)
	}
	return s.db.SaveRatePoints(ctx, rows)
}

func (s *PostgresStore) Query(ctx context.Context, q Query) ([]Point, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryRatePoints(ctx, q.Series, q.FromMillis, q.ToMillis, q.Limit)
	if err != nil {
		return nil, err
	}
	points := make([]Point, len(rows))
	for i, r := range rows {
		points[i] = Point(r)
	}
	return points, nil
}

func (s *PostgresStore) Series(ctx context.Context) ([]string, error) {
	return s.db.ListRateSeries(ctx)
}

func (s *PostgresStore) Prune(ctx context.Context, beforeMillis int64) (int, error) {
	n, err := s.db.DeleteRatePointsBefore(ctx, beforeMillis)
	return int(n), err
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
