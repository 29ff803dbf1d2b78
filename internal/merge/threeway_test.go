package merge

import (
	"strings"
	"testing"
)

func TestThreeWayNoChangesIsNoop(t *testing.T) {
	base := []byte("a\nb\nc")
	res := ThreeWay(base, base, base)
	if res.Conflict {
		t.Fatal("identical base/ours/theirs should never conflict")
	}
	if string(res.Content) != "a\nb\nc" {
		t.Errorf("Content = %q, want %q", res.Content, "a\nb\nc")
	}
}

func TestThreeWayOneSidedChangeWins(t *testing.T) {
	base := []byte("a\nb\nc")
	ours := []byte("a\nB\nc")
	res := ThreeWay(base, ours, base)
	if res.Conflict {
		t.Fatal("a change on only one side should not conflict")
	}
	if string(res.Content) != "a\nB\nc" {
		t.Errorf("Content = %q, want %q", res.Content, "a\nB\nc")
	}
}

func TestThreeWayIdenticalChangeBothSidesIsNoConflict(t *testing.T) {
	base := []byte("a\nb\nc")
	both := []byte("a\nCHANGED\nc")
	res := ThreeWay(base, both, both)
	if res.Conflict {
		t.Fatal("identical changes on both sides should not conflict")
	}
	if string(res.Content) != "a\nCHANGED\nc" {
		t.Errorf("Content = %q, want %q", res.Content, "a\nCHANGED\nc")
	}
}

func TestThreeWayDisagreeingChangeConflicts(t *testing.T) {
	base := []byte("a\nb\nc")
	ours := []byte("a\nOURS\nc")
	theirs := []byte("a\nTHEIRS\nc")
	res := ThreeWay(base, ours, theirs)
	if !res.Conflict {
		t.Fatal("expected a conflict for disagreeing changes to the same line")
	}
	content := string(res.Content)
	if !strings.Contains(content, "<<<<<<< ours") || !strings.Contains(content, "OURS") {
		t.Errorf("missing ours side in conflict output: %q", content)
	}
	if !strings.Contains(content, "=======") || !strings.Contains(content, "THEIRS") {
		t.Errorf("missing theirs side in conflict output: %q", content)
	}
	if !strings.Contains(content, ">>>>>>> theirs") {
		t.Errorf("missing closing marker: %q", content)
	}
}

func TestThreeWayDisjointChangesBothKept(t *testing.T) {
	base := []byte("a\nb\nc\nd\ne")
	ours := []byte("A\nb\nc\nd\ne")
	theirs := []byte("a\nb\nc\nd\nE")
	res := ThreeWay(base, ours, theirs)
	if res.Conflict {
		t.Fatal("disjoint single-line edits should not conflict")
	}
	if string(res.Content) != "A\nb\nc\nd\nE" {
		t.Errorf("Content = %q, want %q", res.Content, "A\nb\nc\nd\nE")
	}
}

func TestThreeWayDeletionOnOneSide(t *testing.T) {
	base := []byte("a\nb\nc")
	ours := []byte("a\nc")
	res := ThreeWay(base, ours, base)
	if res.Conflict {
		t.Fatal("a deletion on only one side should not conflict")
	}
	if string(res.Content) != "a\nc" {
		t.Errorf("Content = %q, want %q", res.Content, "a\nc")
	}
}
