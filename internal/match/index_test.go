package match

import (
	"testing"
)

func buildTestIndex(t *testing.T) *Index {
	t.Helper()
	ix := NewIndex()
	refs := []FaceRef{
		{FaceID: "f1", PhotoID: "p1"},
		{FaceID: "f2", PhotoID: "p1", AssignedMemberID: "m1"},
		{FaceID: "f3", PhotoID: "p2"},
	}
	descriptors := [][]float32{
		{0, 0, 0},
		{1, 0, 0},
		{10, 10, 10},
	}
	if err := ix.Build(refs, descriptors); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return ix
}

func TestIndexSearch(t *testing.T) {
	ix := buildTestIndex(t)

	refs, distances, err := ix.Search([]float32{0.1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 results, got %d", len(refs))
	}
	if refs[0].FaceID != "f1" {
		t.Errorf("expected nearest face f1, got %s", refs[0].FaceID)
	}
	if distances[0] > distances[1] {
		t.Error("expected results ordered nearest first")
	}
}

func TestIndexRemoveFiltersResults(t *testing.T) {
	ix := buildTestIndex(t)
	ix.Remove("f1")

	refs, _, err := ix.Search([]float32{0, 0, 0}, 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	for _, ref := range refs {
		if ref.FaceID == "f1" {
			t.Error("removed face still returned from search")
		}
	}
	if ix.Len() != 2 {
		t.Errorf("expected 2 live entries, got %d", ix.Len())
	}
}

func TestIndexAdd(t *testing.T) {
	ix := NewIndex()
	ix.Add(FaceRef{FaceID: "f1", PhotoID: "p1"}, []float32{1, 1})
	ix.Add(FaceRef{FaceID: "f2", PhotoID: "p2"}, nil) // skipped

	if ix.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", ix.Len())
	}

	refs, _, err := ix.Search([]float32{1, 1}, 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(refs) != 1 || refs[0].FaceID != "f1" {
		t.Errorf("unexpected search result: %+v", refs)
	}
}

func TestIndexSetAssignment(t *testing.T) {
	ix := buildTestIndex(t)
	ix.SetAssignment("f1", "m9")

	refs, _, err := ix.Search([]float32{0, 0, 0}, 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if refs[0].AssignedMemberID != "m9" {
		t.Errorf("expected updated assignment, got %q", refs[0].AssignedMemberID)
	}
}

func TestIndexSearchUninitialized(t *testing.T) {
	ix := NewIndex()
	if _, _, err := ix.Search([]float32{1}, 1); err == nil {
		t.Error("expected error searching an empty index")
	}
}

func TestIndexBuildLengthMismatch(t *testing.T) {
	ix := NewIndex()
	err := ix.Build([]FaceRef{{FaceID: "f1"}}, nil)
	if err == nil {
		t.Error("expected error for mismatched refs/descriptors")
	}
}
