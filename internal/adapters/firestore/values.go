package firestore

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// value is the typed wire representation of a document field.
type value map[string]any

func encodeFields(fields map[string]any) (map[string]value, error) {
	out := make(map[string]value, len(fields))
	for k, v := range fields {
		ev, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("encode field %q: %w", k, err)
		}
		out[k] = ev
	}
	return out, nil
}

func encodeValue(v any) (value, error) {
	switch x := v.(type) {
	case nil:
		return value{"nullValue": nil}, nil
	case string:
		return value{"stringValue": x}, nil
	case bool:
		return value{"booleanValue": x}, nil
	case int:
		return value{"integerValue": strconv.FormatInt(int64(x), 10)}, nil
	case int32:
		return value{"integerValue": strconv.FormatInt(int64(x), 10)}, nil
	case int64:
		return value{"integerValue": strconv.FormatInt(x, 10)}, nil
	case float32:
		return value{"doubleValue": float64(x)}, nil
	case float64:
		return value{"doubleValue": x}, nil
	case time.Time:
		return value{"timestampValue": x.UTC().Format(time.RFC3339Nano)}, nil
	case map[string]any:
		inner, err := encodeFields(x)
		if err != nil {
			return nil, err
		}
		return value{"mapValue": map[string]any{"fields": inner}}, nil
	case []any:
		vals := make([]value, 0, len(x))
		for _, item := range x {
			ev, err := encodeValue(item)
			if err != nil {
				return nil, err
			}
			vals = append(vals, ev)
		}
		return value{"arrayValue": map[string]any{"values": vals}}, nil
	case []string:
		vals := make([]value, 0, len(x))
		for _, item := range x {
			vals = append(vals, value{"stringValue": item})
		}
		return value{"arrayValue": map[string]any{"values": vals}}, nil
	case fmt.Stringer:
		return value{"stringValue": x.String()}, nil
	}
	return nil, fmt.Errorf("unsupported value type %T", v)
}

func decodeFields(fields map[string]value) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = decodeValue(v)
	}
	return out
}

func decodeValue(v value) any {
	// A typed value carries exactly one key; iterate in a stable order anyway.
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		raw := v[k]
		switch k {
		case "nullValue":
			return nil
		case "stringValue", "referenceValue":
			s, _ := raw.(string)
			return s
		case "booleanValue":
			b, _ := raw.(bool)
			return b
		case "integerValue":
			switch n := raw.(type) {
			case string:
				i, err := strconv.ParseInt(n, 10, 64)
				if err != nil {
					return n
				}
				return i
			case float64:
				return int64(n)
			}
		case "doubleValue":
			switch n := raw.(type) {
			case float64:
				return n
			case string:
				f, _ := strconv.ParseFloat(n, 64)
				return f
			}
		case "timestampValue":
			s, _ := raw.(string)
			if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
				return ts
			}
			return s
		case "mapValue":
			m, _ := raw.(map[string]any)
			inner, _ := m["fields"].(map[string]any)
			return decodeFields(toValues(inner))
		case "arrayValue":
			m, _ := raw.(map[string]any)
			items, _ := m["values"].([]any)
			out := make([]any, 0, len(items))
			for _, item := range items {
				iv, _ := item.(map[string]any)
				out = append(out, decodeValue(value(iv)))
			}
			return out
		}
	}
	return nil
}

func toValues(m map[string]any) map[string]value {
	out := make(map[string]value, len(m))
	for k, v := range m {
		if vm, ok := v.(map[string]any); ok {
			out[k] = value(vm)
		}
	}
	return out
}
