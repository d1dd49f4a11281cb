package store

import (
	"encoding/json"
)

// Family member documents have carried face descriptors in three shapes over
// time:
//
//   - "descriptors": list of numeric vectors, appended whenever a user
//     confirms a face as this member (the current shape)
//   - "descriptor": a single numeric vector from the original enrollment
//   - "descriptorJson": a JSON-encoded string holding either one vector or a
//     list of vectors (oldest shape)
//
// DecodeDescriptors is the one place that knows about all three. Entries
// that fail to parse are skipped individually rather than failing the read.

// ReferenceDescriptors returns the descriptors to match against for a
// member. Descriptors confirmed from tagged photos ("descriptors") are
// preferred; enrollment-era shapes are only used when no confirmed
// descriptors exist.
func (m *FamilyMember) ReferenceDescriptors() [][]float32 {
	confirmed := decodeVectorList(m.Doc["descriptors"])
	if len(confirmed) > 0 {
		return confirmed
	}
	return decodeLegacyDescriptors(m.Doc)
}

// DecodeDescriptors returns every descriptor stored on the member document,
// confirmed and legacy shapes alike.
func (m *FamilyMember) DecodeDescriptors() [][]float32 {
	out := decodeVectorList(m.Doc["descriptors"])
	out = append(out, decodeLegacyDescriptors(m.Doc)...)
	return out
}

// AppendDescriptor records a newly confirmed descriptor on the member
// document in the current shape.
func (m *FamilyMember) AppendDescriptor(desc []float32) {
	if len(desc) == 0 {
		return
	}
	if m.Doc == nil {
		m.Doc = make(map[string]any)
	}
	vec := make([]any, len(desc))
	for i, f := range desc {
		vec[i] = float64(f)
	}
	existing, _ := m.Doc["descriptors"].([]any)
	m.Doc["descriptors"] = append(existing, vec)
}

func decodeLegacyDescriptors(doc map[string]any) [][]float32 {
	var out [][]float32
	if vec, ok := toVector(doc["descriptor"]); ok {
		out = append(out, vec)
	}
	if s, ok := doc["descriptorJson"].(string); ok {
		out = append(out, decodeDescriptorJSON(s)...)
	}
	return out
}

// decodeDescriptorJSON parses the oldest stored shape: a JSON string holding
// either a single vector or a list of vectors.
func decodeDescriptorJSON(s string) [][]float32 {
	var list []json.RawMessage
	if err := json.Unmarshal([]byte(s), &list); err != nil {
		return nil
	}
	if len(list) == 0 {
		return nil
	}

	// A flat vector parses as a list of numbers; try that first.
	var single []float64
	if err := json.Unmarshal([]byte(s), &single); err == nil {
		return [][]float32{floats64to32(single)}
	}

	var out [][]float32
	for _, raw := range list {
		var vec []float64
		if err := json.Unmarshal(raw, &vec); err != nil || len(vec) == 0 {
			continue // malformed entry, skip it
		}
		out = append(out, floats64to32(vec))
	}
	return out
}

// decodeVectorList converts a stored list-of-vectors value, skipping
// malformed entries.
func decodeVectorList(v any) [][]float32 {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var out [][]float32
	for _, entry := range list {
		if vec, ok := toVector(entry); ok {
			out = append(out, vec)
		}
	}
	return out
}

// toVector converts a stored numeric array into a descriptor vector.
func toVector(v any) ([]float32, bool) {
	switch val := v.(type) {
	case []float32:
		return val, len(val) > 0
	case []float64:
		return floats64to32(val), len(val) > 0
	case []any:
		if len(val) == 0 {
			return nil, false
		}
		out := make([]float32, len(val))
		for i, n := range val {
			f, ok := n.(float64)
			if !ok {
				return nil, false
			}
			out[i] = float32(f)
		}
		return out, true
	default:
		return nil, false
	}
}

func floats64to32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, f := range in {
		out[i] = float32(f)
	}
	return out
}
