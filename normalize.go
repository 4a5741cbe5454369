package parley

import (
	"encoding/json"
	"fmt"
)

// NormalizeResult converts an arbitrary tool result into transcript text.
// Strings pass through unchanged. nil becomes "". Values implementing
// fmt.Stringer or error use their own rendering. Everything else is
// JSON-encoded with canonical key order and reported as a fallback so the
// caller can surface that a non-text result was coerced.
func NormalizeResult(v any) (text string, fallback bool) {
	switch r := v.(type) {
	case nil:
		return "", false
	case string:
		return r, false
	case fmt.Stringer:
		return r.String(), false
	case error:
		return r.Error(), false
	}

	encoded, err := CanonicalJSON(v)
	if err != nil {
		return fmt.Sprintf("%v", v), true
	}
	return encoded, true
}

// CanonicalJSON encodes v with recursively sorted object keys, so two
// semantically equal values always produce byte-identical output. It relies
// on encoding/json sorting map keys: v is marshaled, decoded into generic
// maps, and marshaled again.
func CanonicalJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", err
	}
	out, err := json.Marshal(generic)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
