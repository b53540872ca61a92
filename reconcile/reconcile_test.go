package reconcile

import (
	"math/rand"
	"slices"
	"testing"
)

type item struct {
	key   string
	value int
}

func keyOf(i item) string { return i.key }

func TestPartition(t *testing.T) {
	old := map[string]item{
		"a": {"a", 1},
		"b": {"b", 2},
		"c": {"c", 3},
	}
	items := []item{{"b", 20}, {"c", 30}, {"d", 40}}

	res := Reconcile(old, items, keyOf)
	ks := Keys(res, keyOf)

	if !slices.Equal(ks.Entering, []string{"d"}) {
		t.Errorf("expected entering [d], got %v", ks.Entering)
	}
	if !slices.Equal(ks.Exiting, []string{"a"}) {
		t.Errorf("expected exiting [a], got %v", ks.Exiting)
	}
	if !slices.Equal(ks.Updating, []string{"b", "c"}) {
		t.Errorf("expected updating [b c], got %v", ks.Updating)
	}

	for _, p := range res.Updating {
		if p.Old.value*10 != p.New.value {
			t.Errorf("pair %s: old %d does not match new %d", p.New.key, p.Old.value, p.New.value)
		}
	}

	// every key lands in exactly one set
	count := make(map[string]int)
	for _, list := range [][]string{ks.Entering, ks.Updating, ks.Exiting} {
		for _, k := range list {
			count[k]++
		}
	}
	for _, k := range []string{"a", "b", "c", "d"} {
		if count[k] != 1 {
			t.Errorf("key %s appears %d times", k, count[k])
		}
	}
}

func TestDeterministic(t *testing.T) {
	old := make(map[string]item)
	for _, k := range []string{"e", "a", "x", "m", "q"} {
		old[k] = item{key: k}
	}
	items := []item{{key: "m"}, {key: "z"}, {key: "a"}, {key: "b"}}

	want := Keys(Reconcile(old, items, keyOf), keyOf)
	for i := 0; i < 20; i++ {
		// rebuild the map with a different insertion order each time
		shuffled := make(map[string]item)
		keys := []string{"e", "a", "x", "m", "q"}
		rand.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
		for _, k := range keys {
			shuffled[k] = item{key: k}
		}
		got := Keys(Reconcile(shuffled, items, keyOf), keyOf)
		if !slices.Equal(got.Entering, want.Entering) ||
			!slices.Equal(got.Updating, want.Updating) ||
			!slices.Equal(got.Exiting, want.Exiting) {
			t.Fatalf("expected %+v, got %+v", want, got)
		}
	}
	if !slices.Equal(want.Exiting, []string{"e", "q", "x"}) {
		t.Errorf("expected exiting sorted by key, got %v", want.Exiting)
	}
}

func TestDuplicateKeys(t *testing.T) {
	res := Reconcile(map[string]item{}, []item{{"a", 1}, {"a", 2}}, keyOf)
	if len(res.Entering) != 1 || res.Entering[0].value != 1 {
		t.Errorf("expected first occurrence to win, got %+v", res.Entering)
	}
}

func TestEmptyGenerations(t *testing.T) {
	res := Reconcile[item](nil, nil, keyOf)
	if len(res.Entering)+len(res.Updating)+len(res.Exiting) != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
	if !Keys(res, keyOf).Empty() {
		t.Error("expected empty key sets")
	}
}

func TestIndex(t *testing.T) {
	m := Index([]item{{"a", 1}, {"b", 2}, {"a", 3}}, keyOf)
	if len(m) != 2 || m["a"].value != 1 {
		t.Errorf("expected first element per key, got %+v", m)
	}
}
