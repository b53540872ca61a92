package protohelper

import (
	"encoding/json"
	"testing"
)

func TestJSONToStruct(t *testing.T) {
	msg, err := JSONToStruct([]byte(`{"timestamp":1000,"allOutducts":[{"convergenceLayer":"stcp","linkIsUpPhysically":true}]}`))
	if err != nil {
		t.Fatalf("JSONToStruct failed: %v", err)
	}
	if v := msg.Fields["timestamp"].GetNumberValue(); v != 1000 {
		t.Errorf("expected timestamp 1000, got %g", v)
	}
	outducts := msg.Fields["allOutducts"].GetListValue().GetValues()
	if len(outducts) != 1 {
		t.Fatalf("expected 1 outduct, got %d", len(outducts))
	}
	cl := outducts[0].GetStructValue().Fields["convergenceLayer"].GetStringValue()
	if cl != "stcp" {
		t.Errorf("expected convergence layer stcp, got %q", cl)
	}
}

func TestJSONToStructErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"array", `[1,2]`},
		{"not json", `Hello websocket`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := JSONToStruct([]byte(tt.data)); err == nil {
				t.Errorf("expected error for %q", tt.data)
			}
		})
	}
}

func TestStructToJSONRoundTrip(t *testing.T) {
	msg, err := MapToStruct(map[string]interface{}{
		"usedSpaceBytes": 4096,
		"inductsConfig":  map[string]interface{}{"inductVector": []interface{}{}},
	})
	if err != nil {
		t.Fatalf("MapToStruct failed: %v", err)
	}
	data, err := StructToJSON(msg)
	if err != nil {
		t.Fatalf("StructToJSON failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("expected valid JSON, got %q: %v", data, err)
	}
	if decoded["usedSpaceBytes"] != float64(4096) {
		t.Errorf("expected usedSpaceBytes 4096, got %v", decoded["usedSpaceBytes"])
	}
	if _, ok := decoded["inductsConfig"].(map[string]interface{}); !ok {
		t.Errorf("expected inductsConfig to stay an object, got %T", decoded["inductsConfig"])
	}
}

func TestNilInputs(t *testing.T) {
	data, err := StructToJSON(nil)
	if err != nil || string(data) != "{}" {
		t.Errorf("expected {} for a nil struct, got %q, %v", data, err)
	}
	msg, err := MapToStruct(nil)
	if err != nil || msg != nil {
		t.Errorf("expected nil for a nil map, got %v, %v", msg, err)
	}
}
