package store

// absentMarker is the sentinel used by callers to mark a document value as
// "not set". The underlying store rejects it, so every write path runs
// documents through Sanitize first.
type absentMarker struct{}

// Absent marks a map entry or slice element for removal during Sanitize.
// Distinct from nil: explicit nulls are preserved.
var Absent any = absentMarker{}

// Sanitize returns a deep copy of a document value with every Absent entry
// dropped. Maps lose absent keys, slices lose absent elements, explicit nil
// values pass through unchanged.
func Sanitize(v any) any {
	switch val := v.(type) {
	case absentMarker:
		// A bare sentinel at the top level has nothing to attach to.
		return nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, entry := range val {
			if _, absent := entry.(absentMarker); absent {
				continue
			}
			out[k] = Sanitize(entry)
		}
		return out
	case []any:
		out := make([]any, 0, len(val))
		for _, entry := range val {
			if _, absent := entry.(absentMarker); absent {
				continue
			}
			out = append(out, Sanitize(entry))
		}
		return out
	default:
		return v
	}
}

// SanitizeMap is a convenience wrapper for document maps.
func SanitizeMap(doc map[string]any) map[string]any {
	out, _ := Sanitize(doc).(map[string]any)
	return out
}
