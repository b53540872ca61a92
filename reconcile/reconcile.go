// Package reconcile matches the elements of two generations by key so that
// surviving elements are updated instead of recreated.
package reconcile

import "sort"

// Pair is an element present in both generations.
type Pair[T any] struct {
	Old T
	New T
}

// Result partitions the keys of two generations.
type Result[T any] struct {
	Entering []T
	Updating []Pair[T]
	Exiting  []T
}

// Reconcile compares the old generation with items. Entering and Updating
// follow the order of items; Exiting is sorted by key. A key repeated in
// items is only taken the first time. Carrying state from Old to New is left
// to the caller.
func Reconcile[T any](old map[string]T, items []T, keyOf func(T) string) Result[T] {
	var res Result[T]
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		key := keyOf(item)
		if seen[key] {
			continue
		}
		seen[key] = true
		if prev, ok := old[key]; ok {
			res.Updating = append(res.Updating, Pair[T]{Old: prev, New: item})
		} else {
			res.Entering = append(res.Entering, item)
		}
	}

	exitKeys := make([]string, 0)
	for key := range old {
		if !seen[key] {
			exitKeys = append(exitKeys, key)
		}
	}
	sort.Strings(exitKeys)
	for _, key := range exitKeys {
		res.Exiting = append(res.Exiting, old[key])
	}
	return res
}

// Index builds the keyed map of a generation, keeping the first element per
// key.
func Index[T any](items []T, keyOf func(T) string) map[string]T {
	m := make(map[string]T, len(items))
	for _, item := range items {
		key := keyOf(item)
		if _, ok := m[key]; !ok {
			m[key] = item
		}
	}
	return m
}

// KeySets lists the keys of each partition, in partition order.
type KeySets struct {
	Entering []string `json:"entering"`
	Updating []string `json:"updating"`
	Exiting  []string `json:"exiting"`
}

// Keys extracts the KeySets of res.
func Keys[T any](res Result[T], keyOf func(T) string) KeySets {
	ks := KeySets{
		Entering: make([]string, 0, len(res.Entering)),
		Updating: make([]string, 0, len(res.Updating)),
		Exiting:  make([]string, 0, len(res.Exiting)),
	}
	for _, e := range res.Entering {
		ks.Entering = append(ks.Entering, keyOf(e))
	}
	for _, p := range res.Updating {
		ks.Updating = append(ks.Updating, keyOf(p.New))
	}
	for _, e := range res.Exiting {
		ks.Exiting = append(ks.Exiting, keyOf(e))
	}
	return ks
}

// Empty reports whether nothing entered or exited.
func (k KeySets) Empty() bool {
	return len(k.Entering) == 0 && len(k.Exiting) == 0
}
