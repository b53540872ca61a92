package history

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

func points(series string, ts ...int64) []Point {
	out := make([]Point, 0, len(ts))
	for _, t := range ts {
		out = append(out, Point{Series: series, TimestampMillis: t, BitsPerSec: float64(t)})
	}
	return out
}

func timestamps(ps []Point) []int64 {
	out := make([]int64, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.TimestampMillis)
	}
	return out
}

func TestMemoryStoreQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	// written out of order on purpose
	if err := s.Write(ctx, points("b", 3000, 1000, 2000)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := s.Write(ctx, append(points("a", 1500), points("c", 500)...)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	tests := []struct {
		name     string
		query    Query
		expected []int64
	}{
		{"whole series", Query{Series: "b"}, []int64{1000, 2000, 3000}},
		{"from", Query{Series: "b", FromMillis: 1500}, []int64{2000, 3000}},
		{"window", Query{Series: "b", FromMillis: 1000, ToMillis: 2000}, []int64{1000, 2000}},
		{"limit", Query{Series: "b", Limit: 2}, []int64{1000, 2000}},
		{"other series", Query{Series: "a"}, []int64{1500}},
		{"unknown series", Query{Series: "zzz"}, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Query(ctx, tt.query)
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if !slices.Equal(timestamps(got), tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, timestamps(got))
			}
		})
	}
}

func TestMemoryStoreOverwrite(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	s.Write(ctx, []Point{{Series: "a", TimestampMillis: 1, BitsPerSec: 1}})
	s.Write(ctx, []Point{{Series: "a", TimestampMillis: 1, BitsPerSec: 2}})

	if s.Len() != 1 {
		t.Fatalf("expected 1 point, got %d", s.Len())
	}
	got, _ := s.Query(ctx, Query{Series: "a"})
	if got[0].BitsPerSec != 2 {
		t.Errorf("expected the second write to win, got %f", got[0].BitsPerSec)
	}
}

func TestMemoryStoreSeries(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	s.Write(ctx, points("outduct/1", 1, 2, 3))
	s.Write(ctx, points("induct/0/peer", 1))
	s.Write(ctx, points("summary/diskErase", 5, 6))

	got, err := s.Series(ctx)
	if err != nil {
		t.Fatalf("Series failed: %v", err)
	}
	expected := []string{"induct/0/peer", "outduct/1", "summary/diskErase"}
	if !slices.Equal(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}

	empty, _ := NewMemoryStore(0).Series(ctx)
	if len(empty) != 0 {
		t.Errorf("expected no series in an empty store, got %v", empty)
	}
}

func TestMemoryStorePrune(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	s.Write(ctx, points("a", 1000, 2000, 3000))
	s.Write(ctx, points("b", 1500))

	n, err := s.Prune(ctx, 2000)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 pruned points, got %d", n)
	}
	if s.Len() != 2 {
		t.Errorf("expected 2 remaining points, got %d", s.Len())
	}
}

func TestMemoryStoreRetention(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2 * time.Second)
	s.Write(ctx, points("a", 0, 1000, 2000))
	if s.Len() != 3 {
		t.Fatalf("expected all points within retention, got %d", s.Len())
	}
	s.Write(ctx, points("b", 3500))

	got, _ := s.Query(ctx, Query{Series: "a"})
	if !slices.Equal(timestamps(got), []int64{2000}) {
		t.Errorf("expected only the point within retention, got %v", timestamps(got))
	}
}

func TestQueryValidate(t *testing.T) {
	tests := []struct {
		name    string
		query   Query
		wantErr bool
	}{
		{"valid", Query{Series: "a", FromMillis: 1, ToMillis: 2}, false},
		{"open ended", Query{Series: "a", FromMillis: 5}, false},
		{"missing series", Query{}, true},
		{"inverted window", Query{Series: "a", FromMillis: 5, ToMillis: 2}, true},
		{"negative limit", Query{Series: "a", Limit: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidQuery) {
				t.Errorf("expected ErrInvalidQuery, got %v", err)
			}
		})
	}
}

func TestSeriesNames(t *testing.T) {
	if got := SummarySeries("diskErase"); got != "summary/diskErase" {
		t.Errorf("unexpected summary series %q", got)
	}
	if got := InductSeries(2, "peer"); got != "induct/2/peer" {
		t.Errorf("unexpected induct series %q", got)
	}
	if got := OutductSeries(3); got != "outduct/3" {
		t.Errorf("unexpected outduct series %q", got)
	}
}
