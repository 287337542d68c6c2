package tsae

import "fmt"

// NullSeq is the sequence number of the null timestamp, ie. a participant
// from which nothing has been seen.
const NullSeq int64 = -1

// Timestamp identifies an operation by the participant that issued it and its
// position in that participant's sequence. Timestamps are values and never
// change once created.
type Timestamp struct {
	Origin string
	Seq    int64
}

// NewTimestamp ...
func NewTimestamp(origin string, seq int64) Timestamp {
	return Timestamp{
		Origin: origin,
		Seq:    seq,
	}
}

// NewNullTimestamp returns the timestamp of a participant that has issued
// nothing yet.
func NewNullTimestamp(origin string) Timestamp {
	return Timestamp{
		Origin: origin,
		Seq:    NullSeq,
	}
}

// IsNull ...
func (t Timestamp) IsNull() bool {
	return t.Seq < 0
}

// Next returns the timestamp that directly follows t for the same origin.
func (t Timestamp) Next() Timestamp {
	return NewTimestamp(t.Origin, t.Seq+1)
}

// Compare orders two timestamps by sequence number. It is only meaningful for
// timestamps of the same origin.
func (t Timestamp) Compare(other Timestamp) int {
	switch {
	case t.Seq < other.Seq:
		return -1
	case t.Seq > other.Seq:
		return 1
	default:
		return 0
	}
}

// String ...
func (t Timestamp) String() string {
	return fmt.Sprintf("%s:%d", t.Origin, t.Seq)
}
