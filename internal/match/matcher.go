package match

// DefaultThreshold is the maximum descriptor distance accepted as an
// identity match. Distances above it are reported as no match.
const DefaultThreshold = 0.55

// Reference is one known identity with its reference descriptors.
type Reference struct {
	MemberID   string
	MemberName string
	// Descriptors accumulated from confirmed tags (preferred) or original
	// enrollment. At least one is required for the identity to match.
	Descriptors [][]float32
}

// Suggestion is an advisory identity match for a query descriptor. It is
// never a confirmed assignment; callers decide what to do with it.
type Suggestion struct {
	MemberID   string  `json:"memberId"`
	MemberName string  `json:"memberName"`
	Distance   float64 `json:"distance"`
	// Confidence is 1 - distance. A display heuristic, not a probability.
	Confidence float64 `json:"confidence"`
}

// Matcher finds the best-matching identity for query descriptors.
type Matcher struct {
	refs      []Reference
	threshold float64
}

// NewMatcher builds a matcher over the given identities. A threshold of 0
// selects DefaultThreshold.
func NewMatcher(refs []Reference, threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{refs: refs, threshold: threshold}
}

// Empty reports whether the matcher has no reference descriptors at all.
func (m *Matcher) Empty() bool {
	for _, ref := range m.refs {
		if len(ref.Descriptors) > 0 {
			return false
		}
	}
	return true
}

// BestMatch returns the identity whose closest reference descriptor is
// nearest to the query, provided that distance is within the threshold.
// The boolean is false when no identity qualifies (including the empty
// identity set, which leaves detections unchanged).
func (m *Matcher) BestMatch(descriptor []float32) (Suggestion, bool) {
	if len(descriptor) == 0 {
		return Suggestion{}, false
	}

	best := Suggestion{Distance: m.threshold}
	found := false
	for _, ref := range m.refs {
		for _, refDesc := range ref.Descriptors {
			d := EuclideanDistance(descriptor, refDesc)
			if d > m.threshold {
				continue
			}
			if !found || d < best.Distance {
				best = Suggestion{
					MemberID:   ref.MemberID,
					MemberName: ref.MemberName,
					Distance:   d,
				}
				found = true
			}
		}
	}
	if !found {
		return Suggestion{}, false
	}
	best.Confidence = 1 - best.Distance
	return best, true
}
