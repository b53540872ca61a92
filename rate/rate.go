// Package rate converts cumulative counters reported by the relay into
// instantaneous and average per-second rates.
package rate

import (
	"math"
	"strconv"
)

const (
	// BitsScale converts a byte delta over milliseconds into bits per second.
	BitsScale = 8000.0
	// ItemsScale converts an item delta over milliseconds into items per second.
	ItemsScale = 1000.0

	// minDeltaMillis is the smallest time delta that yields a non-zero rate.
	minDeltaMillis = 1
)

type point struct {
	value float64
	ts    int64
}

// Sample tracks a single cumulative counter and the rates derived from it.
type Sample struct {
	scale   float64
	count   int
	first   point
	prev    point
	last    point
	current float64
	average float64
}

// New creates a Sample with an arbitrary scale factor.
func New(scale float64) *Sample {
	return &Sample{scale: scale}
}

// NewBitRate creates a Sample that turns byte counters into bits per second.
func NewBitRate() *Sample {
	return New(BitsScale)
}

// NewItemRate creates a Sample that turns item counters into items per second.
func NewItemRate() *Sample {
	return New(ItemsScale)
}

// Update records a new cumulative value observed at timestampMillis.
// The first call only seeds the sample.
func (s *Sample) Update(value float64, timestampMillis int64) {
	p := point{value: value, ts: timestampMillis}
	s.count++
	if s.count == 1 {
		s.first = p
		s.prev = p
		s.last = p
		s.current = 0
		s.average = 0
		return
	}
	s.prev = s.last
	s.last = p
	s.current = s.rate(s.prev, s.last)
	s.average = s.rate(s.first, s.last)
}

func (s *Sample) rate(from, to point) float64 {
	dt := to.ts - from.ts
	if dt <= minDeltaMillis {
		return 0
	}
	dv := to.value - from.value
	if dv < 0 {
		// counter went backwards, the relay restarted
		return 0
	}
	r := dv * s.scale / float64(dt)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

// Current returns the rate between the last two updates.
func (s *Sample) Current() float64 {
	return s.current
}

// Average returns the rate between the first and the last update.
func (s *Sample) Average() float64 {
	return s.average
}

// Count returns how many times Update has been called.
func (s *Sample) Count() int {
	return s.count
}

// Ready reports whether enough history exists for the rate to be plotted.
func (s *Sample) Ready() bool {
	return s.count >= 2
}

// LastTimestamp returns the timestamp of the most recent update.
func (s *Sample) LastTimestamp() int64 {
	return s.last.ts
}

var siPrefixes = []string{"", "K", "M", "G", "T", "P", "E", "Z", "Y"}

// FormatHumanReadable renders num with an SI prefix, e.g. "1.50 Kbit/s".
// thousand is the prefix step (1000 for rates, 1024 for storage sizes).
func FormatHumanReadable(num float64, decimals int, unit string, thousand float64) string {
	if num == 0 || math.IsNaN(num) || math.IsInf(num, 0) {
		return "0 " + unit
	}
	if decimals < 0 {
		decimals = 0
	}
	neg := num < 0
	if neg {
		num = -num
	}
	i := int(math.Floor(math.Log(num) / math.Log(thousand)))
	if i < 0 {
		i = 0
	}
	if i >= len(siPrefixes) {
		i = len(siPrefixes) - 1
	}
	scaled := num / math.Pow(thousand, float64(i))
	s := strconv.FormatFloat(scaled, 'f', decimals, 64) + " " + siPrefixes[i] + unit
	if neg {
		return "-" + s
	}
	return s
}
