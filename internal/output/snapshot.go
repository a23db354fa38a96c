package output

import (
	"bytes"
	"encoding/json"
	"strings"
)

// VolatileBundleFields are bundle fields that differ between otherwise
// identical requests.
var VolatileBundleFields = []string{
	"stats.requestId",
	"stats.fastPathLatencyMs",
	"stats.searchLatencyMs",
	"stats.totalLatencyMs",
}

// Snapshot encodes v deterministically with the given dotted fields removed.
func Snapshot(v interface{}, exclude ...string) ([]byte, error) {
	data, err := Encode(v)
	if err != nil {
		return nil, err
	}
	var parsed interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&parsed); err != nil {
		return nil, err
	}
	if obj, ok := parsed.(map[string]interface{}); ok {
		for _, field := range exclude {
			removeNestedField(obj, field)
		}
	}
	return marshal(parsed, "")
}

// SnapshotEqual reports whether two values encode identically once the
// volatile bundle fields are removed.
func SnapshotEqual(a, b interface{}) bool {
	sa, err := Snapshot(a, VolatileBundleFields...)
	if err != nil {
		return false
	}
	sb, err := Snapshot(b, VolatileBundleFields...)
	if err != nil {
		return false
	}
	return bytes.Equal(sa, sb)
}

// removeNestedField deletes a field addressed with dot notation, e.g.
// "stats.requestId".
func removeNestedField(data map[string]interface{}, path string) {
	parts := strings.FieldsFunc(path, func(r rune) bool { return r == '.' })
	if len(parts) == 0 {
		return
	}

	current := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]interface{})
		if !ok {
			return
		}
		current = next
	}
	delete(current, parts[len(parts)-1])
}
