package match

import (
	"errors"
	"sync"

	"github.com/coder/hnsw"
)

// hnswMaxNeighbors is the M parameter of the HNSW graph.
const hnswMaxNeighbors = 16

// FaceRef is the metadata the index keeps per descriptor so search results
// can be rendered without a store round trip.
type FaceRef struct {
	FaceID           string
	PhotoID          string
	AssignedMemberID string
}

// Index is an in-memory HNSW index over all stored detection descriptors,
// used for "similar faces across the library" lookups. It is rebuilt from
// the store at startup and kept up to date as uploads and deletes happen.
type Index struct {
	mu       sync.RWMutex
	graph    *hnsw.Graph[string]
	idToFace map[string]FaceRef
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{idToFace: make(map[string]FaceRef)}
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.EuclideanDistance
	return g
}

// Build replaces the index contents from a full set of references and their
// descriptors. Entries without a descriptor are skipped.
func (ix *Index) Build(refs []FaceRef, descriptors [][]float32) error {
	if len(refs) != len(descriptors) {
		return errors.New("refs and descriptors length mismatch")
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	g := newGraph()
	faces := make(map[string]FaceRef, len(refs))
	for i, ref := range refs {
		if len(descriptors[i]) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(ref.FaceID, descriptors[i]))
		faces[ref.FaceID] = ref
	}

	ix.graph = g
	ix.idToFace = faces
	return nil
}

// Add inserts a single detection into the index.
func (ix *Index) Add(ref FaceRef, descriptor []float32) {
	if len(descriptor) == 0 {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.graph == nil {
		ix.graph = newGraph()
	}
	ix.graph.Add(hnsw.MakeNode(ref.FaceID, descriptor))
	ix.idToFace[ref.FaceID] = ref
}

// Remove drops detections from the index. The HNSW graph has no true
// deletion; removed entries are filtered out of search results.
func (ix *Index) Remove(faceIDs ...string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, id := range faceIDs {
		delete(ix.idToFace, id)
	}
}

// SetAssignment updates the cached assignment of an indexed detection.
func (ix *Index) SetAssignment(faceID, memberID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ref, ok := ix.idToFace[faceID]; ok {
		ref.AssignedMemberID = memberID
		ix.idToFace[faceID] = ref
	}
}

// Len returns the number of live entries.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.idToFace)
}

// Search returns up to k nearest detections with their distances, nearest
// first. Entries removed since indexing are skipped.
func (ix *Index) Search(descriptor []float32, k int) ([]FaceRef, []float64, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.graph == nil {
		return nil, nil, errors.New("index not initialized")
	}

	// Overfetch to compensate for entries deleted from idToFace.
	neighbors := ix.graph.Search(descriptor, k*2)

	refs := make([]FaceRef, 0, k)
	distances := make([]float64, 0, k)
	for _, n := range neighbors {
		ref, ok := ix.idToFace[n.Key]
		if !ok {
			continue
		}
		refs = append(refs, ref)
		distances = append(distances, EuclideanDistance(descriptor, n.Value))
		if len(refs) == k {
			break
		}
	}
	return refs, distances, nil
}
