package manager

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Codec encodes values for the backing store.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec is the default Codec. Values read back from the store decode
// into generic JSON shapes (map[string]any, []any, float64, ...); use
// Lookup to get a concrete type.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// hashLen is the number of hex characters kept from the digest.
const hashLen = 32

// HashKey derives a stable cache key from query parameters. params is
// encoded as canonical JSON (object keys sorted at every level), so two
// structurally equal parameter sets hash the same regardless of struct
// field order or map iteration.
func HashKey(params any) (string, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("manager: hash key: %w", err)
	}
	// UseNumber keeps integers above 2^53 distinct.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return "", fmt.Errorf("manager: hash key: %w", err)
	}
	// encoding/json sorts map keys, which canonicalizes struct fields too
	// once they round-trip through map[string]any.
	canon, err := json.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("manager: hash key: %w", err)
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:])[:hashLen], nil
}
