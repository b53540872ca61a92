package topology

import (
	"encoding/json"
	"testing"
)

func TestKindText(t *testing.T) {
	for kind, name := range kindNames {
		data, err := json.Marshal(kind)
		if err != nil {
			t.Fatalf("Marshal(%s) failed: %v", name, err)
		}
		if string(data) != `"`+name+`"` {
			t.Errorf("expected %q, got %s", name, data)
		}
		var back Kind
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("Unmarshal(%s) failed: %v", data, err)
		}
		if back != kind {
			t.Errorf("expected %v, got %v", kind, back)
		}
	}

	var k Kind
	if err := k.UnmarshalText([]byte("router")); err == nil {
		t.Error("expected an unknown kind name to be rejected")
	}
}

func TestNodeSetKeepsFirst(t *testing.T) {
	s := NewNodeSet()
	if !s.Add(&Node{ID: "a", Name: "first"}) {
		t.Fatal("expected the first add to succeed")
	}
	if s.Add(&Node{ID: "a", Name: "second"}) {
		t.Error("expected a duplicate id to be refused")
	}
	n, _ := s.Get("a")
	if n.Name != "first" || s.Len() != 1 {
		t.Errorf("expected the first node to be kept, got %q with %d nodes", n.Name, s.Len())
	}
	if _, ok := s.Get("b"); ok {
		t.Error("expected b to be missing")
	}
}
