package config

import (
	"strings"
	"testing"
)

func TestNewSeriesFilter(t *testing.T) {
	tests := []struct {
		name   string
		rules  []SeriesRule
		errMsg string
	}{
		{name: "empty rules"},
		{
			name: "literal and regexp patterns",
			rules: []SeriesRule{
				{Series: "summary/storageToDisk", Action: SeriesSkip},
				{Series: "/induct/[0-9]+/.*/", Action: "skip"},
				{Series: "/.*/", Action: SeriesRecord},
			},
		},
		{
			name:   "invalid regexp",
			rules:  []SeriesRule{{Series: "/induct/[0-9/", Action: SeriesSkip}},
			errMsg: "invalid series pattern in rule 0",
		},
		{
			name:   "missing pattern",
			rules:  []SeriesRule{{Action: SeriesSkip}},
			errMsg: "series pattern is required",
		},
		{
			name:   "invalid action",
			rules:  []SeriesRule{{Series: "outduct/0", Action: "DROP"}},
			errMsg: "invalid action in series rule 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSeriesFilter(tt.rules)
			if tt.errMsg == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("expected error containing %q, got %v", tt.errMsg, err)
			}
		})
	}
}

func TestSeriesFilterAllow(t *testing.T) {
	filter, err := NewSeriesFilter([]SeriesRule{
		{Series: "induct/0/keep", Action: SeriesRecord},
		{Series: "/induct/.*/", Action: SeriesSkip},
		{Series: "/summary/disk.*/", Action: SeriesSkip},
	})
	if err != nil {
		t.Fatalf("NewSeriesFilter failed: %v", err)
	}

	tests := []struct {
		series string
		want   bool
	}{
		{"induct/0/keep", true},
		{"induct/0/peer", false},
		{"induct/1/other", false},
		{"summary/diskToStorage", false},
		{"summary/storageToDisk", true},
		{"outduct/0", true},
		// regexps are anchored to the whole series name
		{"xinduct/0/peer", true},
	}
	for _, tt := range tests {
		if got := filter.Allow(tt.series); got != tt.want {
			t.Errorf("Allow(%q): expected %v, got %v", tt.series, tt.want, got)
		}
	}
}
