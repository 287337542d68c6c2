package tsae

import (
	"sort"
	"strings"

	"github.com/mosaicnetworks/tsae/src/common"
)

// TimestampMatrix maps every participant to the TimestampVector it last
// reported. Row r is participant r's own summary as last observed locally.
type TimestampMatrix struct {
	participants []string
	rows         map[string]*TimestampVector
}

// NewTimestampMatrix creates a matrix with one null row per participant.
func NewTimestampMatrix(participants []string) *TimestampMatrix {
	sorted := make([]string, len(participants))
	copy(sorted, participants)
	sort.Strings(sorted)

	rows := make(map[string]*TimestampVector, len(sorted))
	for _, p := range sorted {
		rows[p] = NewTimestampVector(sorted)
	}

	return &TimestampMatrix{
		participants: sorted,
		rows:         rows,
	}
}

// Participants returns the sorted participant set.
func (tm *TimestampMatrix) Participants() []string {
	return tm.participants
}

// GetTimestampVector returns the row of a node, or nil if the node is unknown.
// The row is not copied.
func (tm *TimestampMatrix) GetTimestampVector(node string) *TimestampVector {
	return tm.rows[node]
}

// Update replaces the row of node with a copy of v, restricted to the
// participant set.
func (tm *TimestampMatrix) Update(node string, v *TimestampVector) error {
	if _, ok := tm.rows[node]; !ok {
		return common.NewStoreErr("TimestampMatrix", common.UnknownParticipant, node)
	}

	row := NewTimestampVector(tm.participants)
	for _, p := range tm.participants {
		row.UpdateTimestamp(v.GetLast(p))
	}
	tm.rows[node] = row

	return nil
}

// UpdateMax merges other into tm row by row with TimestampVector.UpdateMax.
// Rows of other that are not in the participant set are ignored.
func (tm *TimestampMatrix) UpdateMax(other *TimestampMatrix) {
	if other == nil {
		return
	}
	for _, p := range tm.participants {
		if theirs, ok := other.rows[p]; ok {
			tm.rows[p].UpdateMax(theirs)
		}
	}
}

// MinTimestampVector returns, for every participant, the smallest timestamp
// found in its column across all rows. It is the frontier of operations that
// every participant has reported seeing.
func (tm *TimestampMatrix) MinTimestampVector() *TimestampVector {
	if len(tm.participants) == 0 {
		return NewTimestampVector(nil)
	}

	min := tm.rows[tm.participants[0]].Clone()
	for _, p := range tm.participants[1:] {
		min.MergeMin(tm.rows[p])
	}

	return min
}

// Clone returns a deep copy.
func (tm *TimestampMatrix) Clone() *TimestampMatrix {
	participants := make([]string, len(tm.participants))
	copy(participants, tm.participants)

	rows := make(map[string]*TimestampVector, len(tm.rows))
	for p, row := range tm.rows {
		rows[p] = row.Clone()
	}

	return &TimestampMatrix{
		participants: participants,
		rows:         rows,
	}
}

// Equal compares the matrices row by row.
func (tm *TimestampMatrix) Equal(other *TimestampMatrix) bool {
	if tm == nil || other == nil {
		return tm == other
	}
	if len(tm.rows) != len(other.rows) {
		return false
	}
	for p, row := range tm.rows {
		o, ok := other.rows[p]
		if !ok || !row.Equal(o) {
			return false
		}
	}
	return true
}

// String ...
func (tm *TimestampMatrix) String() string {
	lines := make([]string, 0, len(tm.participants))
	for _, p := range tm.participants {
		lines = append(lines, p+": "+tm.rows[p].String())
	}
	return strings.Join(lines, "\n")
}
