package event

import (
	"encoding/json"
)

// JSONCodec is a Connect codec for plain Go structs. It replaces the default
// "json" codec, which only accepts protobuf messages.
type JSONCodec struct{}

func (JSONCodec) Name() string {
	return "json"
}

func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
