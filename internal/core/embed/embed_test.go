package embed

import (
	"testing"

	"github.com/simeonradivoev/electron-dam-sub000/internal/model"
)

func TestStale(t *testing.T) {
	withA := &model.Embedding{Model: "m1", ContentHash: ContentHash("A"), Vector: []float32{1}}

	cases := []struct {
		name    string
		e       *model.Embedding
		desc    string
		modelID string
		want    bool
	}{
		{"fresh", withA, "A", "m1", false},
		{"description changed", withA, "B", "m1", true},
		{"model changed", withA, "A", "m2", true},
		{"absent with description", nil, "A", "m1", true},
		{"absent without description", nil, "", "m1", false},
		{"cleared description is not stale", withA, "", "m1", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Stale(tc.e, tc.desc, tc.modelID); got != tc.want {
				t.Fatalf("Stale = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestShouldDelete(t *testing.T) {
	e := &model.Embedding{Model: "m1", ContentHash: ContentHash("A")}
	if !ShouldDelete(e, "") {
		t.Fatal("cleared description should delete the embedding")
	}
	if ShouldDelete(e, "A") {
		t.Fatal("embedding with live description should be kept")
	}
	if ShouldDelete(nil, "") {
		t.Fatal("nothing to delete")
	}
}
