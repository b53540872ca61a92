// Package protohelper converts telemetry messages between their JSON form
// and the google.protobuf.Struct carried by the ingest service.
package protohelper

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// JSONToStruct parses a JSON object. Numbers become doubles, so integer
// counters above 2^53 lose precision.
func JSONToStruct(data []byte) (*structpb.Struct, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty message")
	}
	msg := new(structpb.Struct)
	if err := protojson.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return msg, nil
}

// StructToJSON renders msg as compact JSON. A nil msg is an empty object.
func StructToJSON(msg *structpb.Struct) ([]byte, error) {
	if msg == nil {
		return []byte("{}"), nil
	}
	data, err := protojson.MarshalOptions{UseProtoNames: true}.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return data, nil
}

// MapToStruct builds a Struct from decoded JSON values.
func MapToStruct(m map[string]interface{}) (*structpb.Struct, error) {
	if m == nil {
		return nil, nil
	}
	return structpb.NewStruct(m)
}
