package tsae

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mosaicnetworks/tsae/src/common"
)

func TestMatrixUpdate(t *testing.T) {
	tm := NewTimestampMatrix(testParticipants)

	row := vector(map[string]int64{"alice": 3, "bob": 1})
	if err := tm.Update("bob", row); err != nil {
		t.Fatal(err)
	}

	if !tm.GetTimestampVector("bob").Equal(row) {
		t.Fatalf("bob's row should be %s, not %s", row, tm.GetTimestampVector("bob"))
	}

	// the matrix keeps its own copy
	row.UpdateTimestamp(NewTimestamp("charlie", 9))
	if !tm.GetTimestampVector("bob").GetLast("charlie").IsNull() {
		t.Fatalf("updating the source vector should not affect the matrix")
	}

	err := tm.Update("dave", row)
	if !common.IsStore(err, common.UnknownParticipant) {
		t.Fatalf("expected UnknownParticipant, got %v", err)
	}
}

func TestMatrixUpdateMax(t *testing.T) {
	a := NewTimestampMatrix(testParticipants)
	a.Update("alice", vector(map[string]int64{"alice": 4, "bob": 1}))
	a.Update("bob", vector(map[string]int64{"alice": 1, "bob": 1}))

	b := NewTimestampMatrix(testParticipants)
	b.Update("alice", vector(map[string]int64{"alice": 2, "bob": 2}))
	b.Update("charlie", vector(map[string]int64{"charlie": 5}))

	a.UpdateMax(b)

	expected := WireMatrix{
		"alice":   {"alice": 4, "bob": 2, "charlie": -1},
		"bob":     {"alice": 1, "bob": 1, "charlie": -1},
		"charlie": {"alice": -1, "bob": -1, "charlie": 5},
	}

	if !cmp.Equal(a.ToWire(), expected) {
		t.Fatal(cmp.Diff(expected, a.ToWire()))
	}

	// b is untouched
	if seq := b.GetTimestampVector("alice").GetLast("alice").Seq; seq != 2 {
		t.Fatalf("b should not be modified, alice/alice is %d", seq)
	}
}

func TestMinTimestampVector(t *testing.T) {
	tm := NewTimestampMatrix(testParticipants)
	tm.Update("alice", vector(map[string]int64{"alice": 4, "bob": 3, "charlie": 1}))
	tm.Update("bob", vector(map[string]int64{"alice": 2, "bob": 3, "charlie": 2}))
	tm.Update("charlie", vector(map[string]int64{"alice": 3, "bob": 5, "charlie": 2}))

	min := tm.MinTimestampVector()

	expected := WireVector{"alice": 2, "bob": 3, "charlie": 1}
	if !cmp.Equal(min.ToWire(), expected) {
		t.Fatal(cmp.Diff(expected, min.ToWire()))
	}

	// one null row holds the frontier back
	tm.Update("bob", NewTimestampVector(testParticipants))
	min = tm.MinTimestampVector()
	for _, p := range testParticipants {
		if !min.GetLast(p).IsNull() {
			t.Fatalf("%s should be null, not %s", p, min.GetLast(p))
		}
	}

	empty := NewTimestampMatrix(nil).MinTimestampVector()
	if len(empty.Participants()) != 0 {
		t.Fatalf("empty matrix should give an empty vector")
	}
}

func TestMatrixCloneAndEqual(t *testing.T) {
	tm := NewTimestampMatrix(testParticipants)
	tm.Update("alice", vector(map[string]int64{"alice": 1}))

	clone := tm.Clone()
	if !tm.Equal(clone) {
		t.Fatalf("clone should be equal")
	}

	clone.GetTimestampVector("alice").UpdateTimestamp(NewTimestamp("bob", 3))
	clone.Update("charlie", vector(map[string]int64{"charlie": 2}))

	if tm.Equal(clone) {
		t.Fatalf("modified clone should not be equal")
	}
	if !tm.GetTimestampVector("alice").GetLast("bob").IsNull() {
		t.Fatalf("modifying the clone should not affect the original")
	}
	if !tm.GetTimestampVector("charlie").GetLast("charlie").IsNull() {
		t.Fatalf("modifying the clone should not affect the original")
	}
}

func TestMatrixWire(t *testing.T) {
	tm := NewTimestampMatrix(testParticipants)
	tm.Update("bob", vector(map[string]int64{"alice": 2, "bob": 7}))

	data, err := tm.Marshal()
	if err != nil {
		t.Fatal(err)
	}

	res, err := UnmarshalMatrix(data)
	if err != nil {
		t.Fatal(err)
	}

	if !tm.Equal(res) {
		t.Fatalf("expected\n%s\ngot\n%s", tm, res)
	}
}
