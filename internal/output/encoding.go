// Package output encodes bundles and other results as deterministic JSON.
//
// Object keys are sorted, floats are rounded to six decimal places and HTML
// characters are left unescaped, so the same value always yields the same
// bytes.
package output

import (
	"bytes"
	"encoding/json"
	"strings"

	"ctxasm/internal/model"
)

// Encode produces byte-identical JSON for equal values.
func Encode(v interface{}) ([]byte, error) {
	normalized, err := normalize(v)
	if err != nil {
		return nil, err
	}
	return marshal(normalized, "")
}

// EncodeIndent is Encode with indentation.
func EncodeIndent(v interface{}, indent string) ([]byte, error) {
	normalized, err := normalize(v)
	if err != nil {
		return nil, err
	}
	return marshal(normalized, indent)
}

// EncodeBundle encodes a bundle for the CLI. A nil bundle is an error.
func EncodeBundle(b *model.Bundle, indent string) ([]byte, error) {
	if b == nil {
		return nil, errNilBundle
	}
	return EncodeIndent(b, indent)
}

type encodeError string

func (e encodeError) Error() string { return string(e) }

const errNilBundle = encodeError("output: nil bundle")

func marshal(v interface{}, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// normalize round-trips v through encoding/json so struct tags and
// omitempty are honoured, then rounds every non-integer number. Maps come
// back as map[string]interface{}, which encoding/json writes in key order.
func normalize(v interface{}) (interface{}, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(&buf)
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	return roundNumbers(generic), nil
}

func roundNumbers(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, x := range t {
			t[k] = roundNumbers(x)
		}
		return t
	case []interface{}:
		for i, x := range t {
			t[i] = roundNumbers(x)
		}
		return t
	case json.Number:
		if !strings.ContainsAny(string(t), ".eE") {
			return t
		}
		f, err := t.Float64()
		if err != nil {
			return t
		}
		return RoundFloat(f)
	default:
		return v
	}
}
