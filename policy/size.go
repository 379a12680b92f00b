package policy

import "reflect"

// maxSizeDepth stops the walk on deeply nested or cyclic values.
const maxSizeDepth = 32

// SizeOf is the default item sizer.
func SizeOf[V any](v V) int64 { return EstimateSize(v) }

// EstimateSize returns a rough in-memory footprint of v in bytes.
// Strings and byte slices count their payload; containers are walked
// recursively. The result is an accounting estimate, not an exact measure.
func EstimateSize(v any) int64 {
	if v == nil {
		return 0
	}
	return sizeOf(reflect.ValueOf(v), 0)
}

func sizeOf(rv reflect.Value, depth int) int64 {
	if !rv.IsValid() {
		return 0
	}
	if depth > maxSizeDepth {
		return int64(rv.Type().Size())
	}
	switch rv.Kind() {
	case reflect.String:
		return int64(rv.Type().Size()) + int64(rv.Len())
	case reflect.Slice:
		n := int64(rv.Type().Size())
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return n + int64(rv.Len())
		}
		for i := 0; i < rv.Len(); i++ {
			n += sizeOf(rv.Index(i), depth+1)
		}
		return n
	case reflect.Array:
		var n int64
		for i := 0; i < rv.Len(); i++ {
			n += sizeOf(rv.Index(i), depth+1)
		}
		return n
	case reflect.Map:
		n := int64(rv.Type().Size())
		iter := rv.MapRange()
		for iter.Next() {
			n += sizeOf(iter.Key(), depth+1) + sizeOf(iter.Value(), depth+1)
		}
		return n
	case reflect.Pointer, reflect.Interface:
		n := int64(rv.Type().Size())
		if rv.IsNil() {
			return n
		}
		return n + sizeOf(rv.Elem(), depth+1)
	case reflect.Struct:
		var n int64
		for i := 0; i < rv.NumField(); i++ {
			n += sizeOf(rv.Field(i), depth+1)
		}
		return n
	default:
		return int64(rv.Type().Size())
	}
}
