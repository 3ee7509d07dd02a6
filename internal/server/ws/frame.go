package ws

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// Frame kinds.
const (
	kindOpportunity = "opportunity"
	kindStatus      = "status"
)

// EncodeFrame builds a binary frame: a protobuf Struct holding
// {"type": kind, "payload": payload}.
func EncodeFrame(kind string, payload map[string]any) ([]byte, error) {
	s, err := structpb.NewStruct(map[string]any{"type": kind, "payload": payload})
	if err != nil {
		return nil, fmt.Errorf("ws: encode %s frame: %w", kind, err)
	}
	return proto.Marshal(s)
}

// DecodeFrame reverses EncodeFrame.
func DecodeFrame(data []byte) (string, map[string]any, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return "", nil, fmt.Errorf("ws: decode frame: %w", err)
	}
	m := s.AsMap()
	kind, _ := m["type"].(string)
	payload, _ := m["payload"].(map[string]any)
	return kind, payload, nil
}

// opportunityFrame encodes opp with the same field names as its JSON form.
func opportunityFrame(opp domain.Opportunity) ([]byte, error) {
	raw, err := json.Marshal(opp)
	if err != nil {
		return nil, fmt.Errorf("ws: opportunity %s: %w", opp.ID, err)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("ws: opportunity %s: %w", opp.ID, err)
	}
	return EncodeFrame(kindOpportunity, payload)
}
