package codec

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"
)

// Sentinel field names tagging extended containers in the JSON tree.
// Detection is by field presence, so these names are reserved: application
// state must not use them as ordinary record fields.
const (
	MapSentinel     = "~map"
	MapEntriesField = "entries"
	SetSentinel     = "~set"
	SetValuesField  = "values"
)

var (
	errCycle             = errors.New("cyclic value")
	errUnsupportedValue  = errors.New("unsupported value type")
	errMalformedSentinel = errors.New("malformed sentinel object")
)

// Codec transforms runtime state trees to JSON-safe trees and back.
// A zero-value Codec is not usable; construct with New.
type Codec struct {
	logger  *slog.Logger
	metrics *Metrics
}

// New creates a codec. A nil logger falls back to slog.Default(); a nil
// metrics sink disables fallback counting but not fallback logging.
func New(logger *slog.Logger, metrics *Metrics) *Codec {
	if logger == nil {
		logger = slog.Default()
	}
	return &Codec{
		logger:  logger,
		metrics: metrics,
	}
}

// Encode transforms a runtime value into a JSON-safe tree. Extended
// containers become sentinel-tagged objects; dates pass through as opaque
// leaves for the JSON layer to serialize natively. Encode never fails: a
// subtree that cannot be converted is returned unconverted and the failure
// is reported to the observability sink.
func (c *Codec) Encode(value any) any {
	return c.encodeValue(value, make(map[uintptr]bool))
}

// Decode is the inverse of Encode for the representable set. Sentinel-tagged
// objects become their container types; everything else is rebuilt
// structurally. Date leaves are returned unchanged since a date-shaped value
// is indistinguishable from a plain one. Decode never fails; malformed
// subtrees are returned as-is and reported.
func (c *Codec) Decode(value any) any {
	return c.decodeValue(value, make(map[uintptr]bool))
}

func (c *Codec) encodeValue(value any, visited map[uintptr]bool) any {
	switch v := value.(type) {
	case nil:
		return nil
	case KeyedMap:
		ptr := reflect.ValueOf(v).Pointer()
		if visited[ptr] {
			c.report("encode", errCycle)
			return v
		}
		visited[ptr] = true
		defer delete(visited, ptr)

		entries := make(map[string]any, len(v))
		for key, entry := range v {
			entries[key] = c.encodeValue(entry, visited)
		}
		return map[string]any{MapSentinel: true, MapEntriesField: entries}
	case *UniqueSet:
		if v == nil {
			return nil
		}
		ptr := reflect.ValueOf(v).Pointer()
		if visited[ptr] {
			c.report("encode", errCycle)
			return v
		}
		visited[ptr] = true
		defer delete(visited, ptr)

		values := make([]any, 0, v.Len())
		for _, member := range v.members {
			values = append(values, c.encodeValue(member, visited))
		}
		return map[string]any{SetSentinel: true, SetValuesField: values}
	case map[string]any:
		ptr := reflect.ValueOf(v).Pointer()
		if visited[ptr] {
			c.report("encode", errCycle)
			return v
		}
		visited[ptr] = true
		defer delete(visited, ptr)

		result := make(map[string]any, len(v))
		for key, entry := range v {
			result[key] = c.encodeValue(entry, visited)
		}
		return result
	case []any:
		ptr := reflect.ValueOf(v).Pointer()
		if visited[ptr] {
			c.report("encode", errCycle)
			return v
		}
		visited[ptr] = true
		defer delete(visited, ptr)

		result := make([]any, len(v))
		for i, item := range v {
			result[i] = c.encodeValue(item, visited)
		}
		return result
	case time.Time:
		// Opaque leaf; the JSON layer serializes it in its native form
		return v
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v
	}

	return c.encodeReflect(value, visited)
}

// encodeReflect handles mappings and sequences of concrete element types
// (map[string]int, []string, …) that arrive from application state without
// passing through a JSON round trip first.
func (c *Codec) encodeReflect(value any, visited map[uintptr]bool) any {
	rv := reflect.ValueOf(value)

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return c.encodeValue(rv.Elem().Interface(), visited)
	case reflect.Map:
		ptr := rv.Pointer()
		if visited[ptr] {
			c.report("encode", errCycle)
			return value
		}
		visited[ptr] = true
		defer delete(visited, ptr)

		result := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			// Map keys are coerced to string form; non-string keys are
			// not round-trip-safe
			key := fmt.Sprint(iter.Key().Interface())
			result[key] = c.encodeValue(iter.Value().Interface(), visited)
		}
		return result
	case reflect.Slice:
		ptr := rv.Pointer()
		if visited[ptr] {
			c.report("encode", errCycle)
			return value
		}
		visited[ptr] = true
		defer delete(visited, ptr)

		result := make([]any, rv.Len())
		for i := range rv.Len() {
			result[i] = c.encodeValue(rv.Index(i).Interface(), visited)
		}
		return result
	case reflect.Array:
		result := make([]any, rv.Len())
		for i := range rv.Len() {
			result[i] = c.encodeValue(rv.Index(i).Interface(), visited)
		}
		return result
	default:
		c.report("encode", fmt.Errorf("%w: %T", errUnsupportedValue, value))
		return value
	}
}

func (c *Codec) decodeValue(value any, visited map[uintptr]bool) any {
	switch v := value.(type) {
	case map[string]any:
		ptr := reflect.ValueOf(v).Pointer()
		if visited[ptr] {
			c.report("decode", errCycle)
			return v
		}
		visited[ptr] = true
		defer delete(visited, ptr)

		if isSentinel(v, MapSentinel) {
			entries, ok := v[MapEntriesField].(map[string]any)
			if !ok {
				c.report("decode", fmt.Errorf("%w: %q without %q mapping", errMalformedSentinel, MapSentinel, MapEntriesField))
				return v
			}
			result := make(KeyedMap, len(entries))
			for key, entry := range entries {
				result[key] = c.decodeValue(entry, visited)
			}
			return result
		}

		if isSentinel(v, SetSentinel) {
			values, ok := v[SetValuesField].([]any)
			if !ok {
				c.report("decode", fmt.Errorf("%w: %q without %q sequence", errMalformedSentinel, SetSentinel, SetValuesField))
				return v
			}
			result := NewUniqueSet()
			for _, member := range values {
				result.Add(c.decodeValue(member, visited))
			}
			return result
		}

		result := make(map[string]any, len(v))
		for key, entry := range v {
			result[key] = c.decodeValue(entry, visited)
		}
		return result
	case []any:
		ptr := reflect.ValueOf(v).Pointer()
		if visited[ptr] {
			c.report("decode", errCycle)
			return v
		}
		visited[ptr] = true
		defer delete(visited, ptr)

		result := make([]any, len(v))
		for i, item := range v {
			result[i] = c.decodeValue(item, visited)
		}
		return result
	default:
		// Scalars, dates, and anything else pass through unchanged
		return v
	}
}

// isSentinel reports whether the object is tagged with the given sentinel
// field set to true. Tagging is by field presence, not type metadata.
func isSentinel(obj map[string]any, field string) bool {
	tagged, ok := obj[field].(bool)
	return ok && tagged
}

func (c *Codec) report(direction string, err error) {
	c.logger.Warn("codec conversion degraded to pass-through",
		"direction", direction,
		"error", err)
	if c.metrics != nil {
		c.metrics.Fallbacks.WithLabelValues(direction).Inc()
	}
}
