package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownRecord is returned when a message carries none of the known
// discriminator fields.
var ErrUnknownRecord = errors.New("unknown telemetry record")

// discriminators are checked in order; the first field present decides the
// record type.
var discriminators = []struct {
	field string
	build func() Record
}{
	{"hdtnConfigName", func() Record { return &Config{} }},
	{"allInducts", func() Record { return &IngressTelemetry{} }},
	{"allOutducts", func() Record { return &EgressTelemetry{} }},
	{"outductCapabilityTelemetryList", func() Record { return &CapabilityTelemetry{} }},
	{"usedSpaceBytes", func() Record { return &StorageTelemetry{} }},
}

// Decode parses one JSON telemetry message into its typed record.
func Decode(data []byte) (Record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to parse telemetry message: %w", err)
	}

	for _, d := range discriminators {
		if _, ok := fields[d.field]; !ok {
			continue
		}
		rec := d.build()
		if err := json.Unmarshal(data, rec); err != nil {
			return nil, fmt.Errorf("failed to decode %s record: %w", rec.Kind(), err)
		}
		return rec, nil
	}
	return nil, ErrUnknownRecord
}

// Encode renders a record back into the JSON form Decode accepts.
func Encode(rec Record) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s record: %w", rec.Kind(), err)
	}
	return data, nil
}
