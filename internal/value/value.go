// Package value implements the kernel's JSON-shaped tagged value model:
// deep clone, structural equality, path resolution, type labeling, and a
// number-truncation contract that preserves the integer/float distinction
// across encode/decode round trips.
//
// A Value is represented the way Go's encoding/json naturally decodes JSON:
// nil, bool, string, json.Number, []any, or map[string]any. json.Number is
// used instead of float64 so integral JSON numbers survive as integers.
package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Value is any JSON-shaped value: nil, bool, json.Number, string, []any, or
// map[string]any.
type Value = any

// TypeLabel returns the JSON type label of v: null|boolean|number|string|
// array|object.
func TypeLabel(v Value) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number, int, int64, float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "object"
	}
}

// Clone performs a deep copy of v. Maps and slices are never aliased with
// the original.
func Clone(v Value) Value {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Clone(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Clone(val)
		}
		return out
	default:
		return v
	}
}

// Equal reports whether a and b are structurally equal. Numbers compare by
// numeric value (so json.Number("1") == json.Number("1.0")) when both parse
// as numbers; otherwise they fall back to exact textual comparison.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, aval := range av {
			bval, ok := bv[k]
			if !ok || !Equal(aval, bval) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case json.Number:
		return numberEqual(av, b)
	default:
		return a == b
	}
}

func numberEqual(a json.Number, b Value) bool {
	bn, ok := b.(json.Number)
	if !ok {
		return false
	}
	if a.String() == bn.String() {
		return true
	}
	af, aerr := a.Float64()
	bf, berr := bn.Float64()
	return aerr == nil && berr == nil && af == bf
}

// Decode parses JSON bytes into a Value, preserving integer/float
// distinctness via json.Number.
func Decode(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v Value
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("value: decode: %w", err)
	}
	return v, nil
}

// Encode serializes v as JSON. When sortKeys is true, object keys are
// emitted in sorted order.
func Encode(v Value, sortKeys bool) (string, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v, sortKeys); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func encodeValue(buf *bytes.Buffer, v Value, sortKeys bool) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case map[string]any:
		return encodeObject(buf, t, sortKeys)
	case []any:
		buf.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, item, sortKeys); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		enc, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("value: encode: %w", err)
		}
		buf.Write(enc)
		return nil
	}
}

func encodeObject(buf *bytes.Buffer, m map[string]any, sortKeys bool) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	if sortKeys {
		sort.Strings(keys)
	}
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyEnc, err := json.Marshal(k)
		if err != nil {
			return err
		}
		buf.Write(keyEnc)
		buf.WriteByte(':')
		if err := encodeValue(buf, m[k], sortKeys); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// Trunc truncates x toward zero. Integral results within the signed-64
// range are returned as int64 so downstream TypeLabel/Equal treat them as
// integers rather than floats.
func Trunc(x float64) (Value, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil, fmt.Errorf("value: trunc requires a finite number, got %v", x)
	}
	whole := math.Trunc(x)
	if whole >= -9223372036854775808 && whole < 9223372036854775808 {
		return int64(whole), nil
	}
	return whole, nil
}

// NumberFromInt64 constructs a json.Number for an int64, for callers that
// need to build Values programmatically.
func NumberFromInt64(i int64) json.Number {
	return json.Number(strconv.FormatInt(i, 10))
}

// AsNumber coerces a decoded Value to a float64, accepting any of the
// numeric shapes that can appear in a Value tree (json.Number from
// decoded documents, plain int/int64/float64 from values built
// programmatically by Go components).
func AsNumber(v Value) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
