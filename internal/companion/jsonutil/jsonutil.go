// Package jsonutil centralizes JSON (de)serialization on bytedance/sonic,
// mirroring the teacher's own pkg/utils/json wrapper (referenced throughout
// internal/hivemind/service/agents/store/boltdb/*.go) which the retrieval pack
// did not include verbatim but which the teacher's go.mod confirms is backed by
// sonic rather than encoding/json.
package jsonutil

import "github.com/bytedance/sonic"

// Marshal serializes v to JSON bytes.
func Marshal(v any) ([]byte, error) {
	return sonic.Marshal(v)
}

// Unmarshal deserializes JSON bytes into v.
func Unmarshal(data []byte, v any) error {
	return sonic.Unmarshal(data, v)
}

// MarshalString serializes v to a JSON string.
func MarshalString(v any) (string, error) {
	b, err := sonic.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
