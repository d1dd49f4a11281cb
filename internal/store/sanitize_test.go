package store

import (
	"reflect"
	"testing"
)

func TestSanitizeDropsAbsentKeys(t *testing.T) {
	doc := map[string]any{
		"caption": "sunset",
		"year":    Absent,
		"notes":   nil,
	}

	got := SanitizeMap(doc)

	want := map[string]any{
		"caption": "sunset",
		"notes":   nil, // explicit null preserved
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Sanitize = %#v, want %#v", got, want)
	}
}

func TestSanitizeRecursesIntoNestedDocuments(t *testing.T) {
	doc := map[string]any{
		"faceTags": []any{
			map[string]any{"memberId": "m1", "confidence": Absent},
			Absent,
			map[string]any{"memberId": "m2"},
		},
		"meta": map[string]any{
			"filename": "a.jpg",
			"exif":     Absent,
		},
	}

	got := SanitizeMap(doc)

	want := map[string]any{
		"faceTags": []any{
			map[string]any{"memberId": "m1"},
			map[string]any{"memberId": "m2"},
		},
		"meta": map[string]any{
			"filename": "a.jpg",
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Sanitize = %#v, want %#v", got, want)
	}
}

func TestSanitizeLeavesCleanDocumentsAlone(t *testing.T) {
	doc := map[string]any{
		"a": 1,
		"b": []any{"x", "y"},
	}
	got := SanitizeMap(doc)
	if !reflect.DeepEqual(got, doc) {
		t.Errorf("Sanitize changed a clean document: %#v", got)
	}
}

func TestSanitizeBareSentinel(t *testing.T) {
	if got := Sanitize(Absent); got != nil {
		t.Errorf("Sanitize(Absent) = %#v, want nil", got)
	}
}
