package tsae

import (
	"sort"
	"strings"
)

// TimestampVector maps every participant to the last Timestamp incorporated
// from it. The set of participants is fixed at construction; entries are
// replaced, never added or removed.
type TimestampVector struct {
	participants []string
	timestamps   map[string]Timestamp
}

// NewTimestampVector creates a vector where every participant is mapped to the
// null timestamp.
func NewTimestampVector(participants []string) *TimestampVector {
	sorted := make([]string, len(participants))
	copy(sorted, participants)
	sort.Strings(sorted)

	timestamps := make(map[string]Timestamp, len(sorted))
	for _, p := range sorted {
		timestamps[p] = NewNullTimestamp(p)
	}

	return &TimestampVector{
		participants: sorted,
		timestamps:   timestamps,
	}
}

// Participants returns the sorted participant set. The returned slice must not
// be modified.
func (tv *TimestampVector) Participants() []string {
	return tv.participants
}

// Has returns true if node belongs to the participant set.
func (tv *TimestampVector) Has(node string) bool {
	_, ok := tv.timestamps[node]
	return ok
}

// GetLast returns the last timestamp of a node, or the null timestamp if the
// node is unknown.
func (tv *TimestampVector) GetLast(node string) Timestamp {
	ts, ok := tv.timestamps[node]
	if !ok {
		return NewNullTimestamp(node)
	}
	return ts
}

// UpdateTimestamp unconditionally replaces the entry of ts.Origin. Timestamps
// of unknown origins are ignored.
func (tv *TimestampVector) UpdateTimestamp(ts Timestamp) {
	if _, ok := tv.timestamps[ts.Origin]; !ok {
		return
	}
	tv.timestamps[ts.Origin] = ts
}

// UpdateMax keeps, for every participant, the greater of the local entry and
// the entry in other. Ties keep the local entry. Participants missing from
// other count as null.
func (tv *TimestampVector) UpdateMax(other *TimestampVector) {
	if other == nil {
		return
	}
	for _, p := range tv.participants {
		theirs := other.GetLast(p)
		if theirs.Compare(tv.timestamps[p]) > 0 {
			tv.timestamps[p] = theirs
		}
	}
}

// MergeMin keeps, for every participant, the smaller of the local entry and the
// entry in other.
func (tv *TimestampVector) MergeMin(other *TimestampVector) {
	if other == nil {
		return
	}
	for _, p := range tv.participants {
		theirs := other.GetLast(p)
		if theirs.Compare(tv.timestamps[p]) < 0 {
			tv.timestamps[p] = theirs
		}
	}
}

// Clone returns a deep copy.
func (tv *TimestampVector) Clone() *TimestampVector {
	participants := make([]string, len(tv.participants))
	copy(participants, tv.participants)

	timestamps := make(map[string]Timestamp, len(tv.timestamps))
	for p, ts := range tv.timestamps {
		timestamps[p] = ts
	}

	return &TimestampVector{
		participants: participants,
		timestamps:   timestamps,
	}
}

// Equal compares the participant sets and every entry.
func (tv *TimestampVector) Equal(other *TimestampVector) bool {
	if tv == nil || other == nil {
		return tv == other
	}
	if len(tv.timestamps) != len(other.timestamps) {
		return false
	}
	for p, ts := range tv.timestamps {
		o, ok := other.timestamps[p]
		if !ok || o != ts {
			return false
		}
	}
	return true
}

// String ...
func (tv *TimestampVector) String() string {
	entries := make([]string, 0, len(tv.participants))
	for _, p := range tv.participants {
		entries = append(entries, tv.timestamps[p].String())
	}
	return "[" + strings.Join(entries, " ") + "]"
}
