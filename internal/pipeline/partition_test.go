package pipeline

import (
	"fmt"
	"testing"
)

func idList(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("mdp.%08d", i)
	}
	return ids
}

func TestRemaining(t *testing.T) {
	all := []string{"mdp.1", "mdp.2", "mdp.3", "mdp.4"}
	done := map[string]struct{}{"mdp.2": {}, "mdp.4": {}}

	got := Remaining(all, done)
	want := []string{"mdp.1", "mdp.3"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q (manifest order must be preserved)", i, got[i], want[i])
		}
	}

	// Re-invocable: same inputs, same output, no mutation.
	again := Remaining(all, done)
	if len(again) != len(got) {
		t.Errorf("second invocation differs: %v", again)
	}
	if len(all) != 4 {
		t.Error("input slice mutated")
	}
}

func TestRemainingAllDone(t *testing.T) {
	all := []string{"mdp.1", "mdp.2"}
	done := map[string]struct{}{"mdp.1": {}, "mdp.2": {}}
	if got := Remaining(all, done); len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
}

func TestBatches(t *testing.T) {
	tests := []struct {
		name      string
		ids       int
		size      int
		wantCount int
		wantLast  int
	}{
		{"exact split", 1000, 25, 40, 25},
		{"ragged tail", 103, 25, 5, 3},
		{"single batch", 10, 25, 1, 10},
		{"empty", 0, 25, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches := Batches(idList(tt.ids), tt.size)
			if len(batches) != tt.wantCount {
				t.Fatalf("got %d batches, want %d", len(batches), tt.wantCount)
			}
			if tt.wantCount == 0 {
				return
			}
			if got := len(batches[len(batches)-1]); got != tt.wantLast {
				t.Errorf("last batch has %d ids, want %d", got, tt.wantLast)
			}
			// Order preserved across the split.
			if batches[0][0] != "mdp.00000000" {
				t.Errorf("first id = %q", batches[0][0])
			}
		})
	}
}

func TestBatchesBadSize(t *testing.T) {
	if got := Batches(idList(5), 0); got != nil {
		t.Errorf("size 0 returned %v", got)
	}
}
