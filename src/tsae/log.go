package tsae

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mosaicnetworks/tsae/src/common"
)

// Log keeps, for every participant, the contiguous sequence of operations it
// issued that have not been purged yet. Operations are admitted in issuance
// order only: an operation is accepted iff its sequence number directly
// follows the last one admitted from the same origin.
//
// The Log is safe for concurrent use.
type Log struct {
	sync.RWMutex
	participants []string
	operations   map[string][]Operation
	// floor is the last purged sequence number per origin. An origin whose
	// sequence is empty accepts exactly floor+1.
	floor map[string]int64
}

// NewLog creates an empty Log for a fixed set of participants.
func NewLog(participants []string) *Log {
	sorted := make([]string, len(participants))
	copy(sorted, participants)
	sort.Strings(sorted)

	operations := make(map[string][]Operation, len(sorted))
	floor := make(map[string]int64, len(sorted))
	for _, p := range sorted {
		operations[p] = []Operation{}
		floor[p] = NullSeq
	}

	return &Log{
		participants: sorted,
		operations:   operations,
		floor:        floor,
	}
}

// Participants returns the sorted participant set.
func (l *Log) Participants() []string {
	return l.participants
}

// Add appends op to the sequence of its origin. It returns a PassedIndex
// StoreErr if op was already admitted (or purged), a SkippedIndex StoreErr if
// a predecessor is missing, and an UnknownParticipant StoreErr if the origin
// is not a participant. The Log is not modified when an error is returned.
func (l *Log) Add(op Operation) error {
	l.Lock()
	defer l.Unlock()

	ops, ok := l.operations[op.Origin()]
	if !ok {
		return common.NewStoreErr("Log", common.UnknownParticipant, op.Origin())
	}

	last := l.floor[op.Origin()]
	if len(ops) > 0 {
		last = ops[len(ops)-1].Seq()
	}

	switch {
	case op.Seq() <= last:
		return common.NewStoreErr("Log", common.PassedIndex, op.Timestamp.String())
	case op.Seq() > last+1:
		return common.NewStoreErr("Log", common.SkippedIndex, op.Timestamp.String())
	}

	l.operations[op.Origin()] = append(ops, op)

	return nil
}

// Last returns the timestamp of the last operation admitted from node, purged
// or not. It is the null timestamp if nothing was admitted.
func (l *Log) Last(node string) Timestamp {
	l.RLock()
	defer l.RUnlock()

	ops := l.operations[node]
	if len(ops) > 0 {
		return ops[len(ops)-1].Timestamp
	}
	floor, ok := l.floor[node]
	if !ok {
		return NewNullTimestamp(node)
	}
	return NewTimestamp(node, floor)
}

// ListNewer returns the operations that are more recent than summary.
// Participants are visited in sorted order, and each participant's operations
// are returned in increasing sequence order, so the result can be admitted
// directly by the receiver.
func (l *Log) ListNewer(summary *TimestampVector) []Operation {
	l.RLock()
	defer l.RUnlock()

	res := []Operation{}
	for _, p := range l.participants {
		known := summary.GetLast(p)
		ops := l.operations[p]

		// sequences are contiguous, so the first newer operation is found by
		// binary search.
		i := sort.Search(len(ops), func(i int) bool {
			return ops[i].Seq() > known.Seq
		})
		res = append(res, ops[i:]...)
	}

	return res
}

// PurgeLog discards every operation that all participants have acknowledged
// according to ack, and returns the frontier it applied.
func (l *Log) PurgeLog(ack *TimestampMatrix) *TimestampVector {
	frontier := ack.MinTimestampVector()
	l.Purge(frontier)
	return frontier
}

// Purge discards, for every participant, the operations with a sequence number
// lower or equal to the frontier.
func (l *Log) Purge(frontier *TimestampVector) {
	l.Lock()
	defer l.Unlock()

	for _, p := range l.participants {
		limit := frontier.GetLast(p).Seq
		ops := l.operations[p]

		i := sort.Search(len(ops), func(i int) bool {
			return ops[i].Seq() > limit
		})
		if i == 0 {
			continue
		}

		l.floor[p] = ops[i-1].Seq()
		remaining := make([]Operation, len(ops)-i)
		copy(remaining, ops[i:])
		l.operations[p] = remaining
	}
}

// Restore resets the Log to a persisted state: floor holds the last purged
// sequence per participant and ops the operations that were not purged.
func (l *Log) Restore(floor *TimestampVector, ops []Operation) error {
	l.Lock()
	for _, p := range l.participants {
		l.operations[p] = []Operation{}
		l.floor[p] = NullSeq
		if floor != nil {
			l.floor[p] = floor.GetLast(p).Seq
		}
	}
	l.Unlock()

	for _, op := range ops {
		if err := l.Add(op); err != nil {
			return err
		}
	}

	return nil
}

// Floor returns the last purged timestamp of every participant.
func (l *Log) Floor() *TimestampVector {
	l.RLock()
	defer l.RUnlock()

	floor := NewTimestampVector(l.participants)
	for p, seq := range l.floor {
		floor.UpdateTimestamp(NewTimestamp(p, seq))
	}
	return floor
}

// Len returns the number of operations currently held.
func (l *Log) Len() int {
	l.RLock()
	defer l.RUnlock()

	n := 0
	for _, ops := range l.operations {
		n += len(ops)
	}
	return n
}

// Operations returns a copy of the sequence of a participant.
func (l *Log) Operations(node string) []Operation {
	l.RLock()
	defer l.RUnlock()

	ops := l.operations[node]
	res := make([]Operation, len(ops))
	copy(res, ops)
	return res
}

// Clone returns a deep copy. Payloads are shared since operations are
// immutable.
func (l *Log) Clone() *Log {
	l.RLock()
	defer l.RUnlock()

	clone := NewLog(l.participants)
	for p, ops := range l.operations {
		cp := make([]Operation, len(ops))
		copy(cp, ops)
		clone.operations[p] = cp
		clone.floor[p] = l.floor[p]
	}

	return clone
}

// Equal compares the sequences of every participant.
func (l *Log) Equal(other *Log) bool {
	if l == other {
		return true
	}
	if l == nil || other == nil {
		return false
	}

	snapshot := other.Clone()

	l.RLock()
	defer l.RUnlock()

	if len(l.operations) != len(snapshot.operations) {
		return false
	}
	for p, ops := range l.operations {
		theirs, ok := snapshot.operations[p]
		if !ok || len(theirs) != len(ops) {
			return false
		}
		for i := range ops {
			if !operationEqual(ops[i], theirs[i]) {
				return false
			}
		}
	}

	return true
}

// String ...
func (l *Log) String() string {
	l.RLock()
	defer l.RUnlock()

	lines := make([]string, 0, len(l.participants))
	for _, p := range l.participants {
		entries := make([]string, 0, len(l.operations[p]))
		for _, op := range l.operations[p] {
			entries = append(entries, op.String())
		}
		lines = append(lines, fmt.Sprintf("%s: [%s]", p, strings.Join(entries, " ")))
	}
	return strings.Join(lines, "\n")
}

func operationEqual(a, b Operation) bool {
	return a.Timestamp == b.Timestamp &&
		a.Type == b.Type &&
		string(a.Payload) == string(b.Payload)
}

// IsOrderingViolation returns true if err means that an operation was rejected
// because it was a duplicate or arrived out of order. Such operations are
// dropped; they are retransmitted by a later session.
func IsOrderingViolation(err error) bool {
	return common.IsStore(err, common.PassedIndex) ||
		common.IsStore(err, common.SkippedIndex)
}
