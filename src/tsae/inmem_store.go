package tsae

import (
	"sync"

	cm "github.com/mosaicnetworks/tsae/src/common"
)

// InmemStore implements the Store interface with in-memory maps. Nothing
// survives the process.
type InmemStore struct {
	sync.RWMutex
	participants []string
	summary      *TimestampVector
	ack          *TimestampMatrix
	floor        *TimestampVector
	operations   map[string][]Operation
}

// NewInmemStore creates an empty InmemStore for a set of participants.
func NewInmemStore(participants []string) *InmemStore {
	operations := make(map[string][]Operation, len(participants))
	for _, p := range participants {
		operations[p] = []Operation{}
	}

	summary := NewTimestampVector(participants)

	return &InmemStore{
		participants: summary.Participants(),
		summary:      summary,
		ack:          NewTimestampMatrix(participants),
		floor:        NewTimestampVector(participants),
		operations:   operations,
	}
}

// Participants implements the Store interface.
func (s *InmemStore) Participants() []string {
	return s.participants
}

// GetSummary implements the Store interface.
func (s *InmemStore) GetSummary() (*TimestampVector, error) {
	s.RLock()
	defer s.RUnlock()
	return s.summary.Clone(), nil
}

// SetSummary implements the Store interface.
func (s *InmemStore) SetSummary(summary *TimestampVector) error {
	s.Lock()
	defer s.Unlock()
	s.summary = summary.Clone()
	return nil
}

// GetAck implements the Store interface.
func (s *InmemStore) GetAck() (*TimestampMatrix, error) {
	s.RLock()
	defer s.RUnlock()
	return s.ack.Clone(), nil
}

// SetAck implements the Store interface.
func (s *InmemStore) SetAck(ack *TimestampMatrix) error {
	s.Lock()
	defer s.Unlock()
	s.ack = ack.Clone()
	return nil
}

// GetFloor implements the Store interface.
func (s *InmemStore) GetFloor() (*TimestampVector, error) {
	s.RLock()
	defer s.RUnlock()
	return s.floor.Clone(), nil
}

// SetOperation implements the Store interface. Operations must be set in
// sequence order for every participant.
func (s *InmemStore) SetOperation(op Operation) error {
	s.Lock()
	defer s.Unlock()

	ops, ok := s.operations[op.Origin()]
	if !ok {
		return cm.NewStoreErr("Operations", cm.UnknownParticipant, op.Origin())
	}

	last := s.floor.GetLast(op.Origin()).Seq
	if len(ops) > 0 {
		last = ops[len(ops)-1].Seq()
	}
	if op.Seq() <= last {
		return cm.NewStoreErr("Operations", cm.PassedIndex, op.Timestamp.String())
	}

	s.operations[op.Origin()] = append(ops, op)

	return nil
}

// ParticipantOperations implements the Store interface.
func (s *InmemStore) ParticipantOperations(participant string) ([]Operation, error) {
	s.RLock()
	defer s.RUnlock()

	ops, ok := s.operations[participant]
	if !ok {
		return nil, cm.NewStoreErr("Operations", cm.UnknownParticipant, participant)
	}

	res := make([]Operation, len(ops))
	copy(res, ops)

	return res, nil
}

// Purge implements the Store interface.
func (s *InmemStore) Purge(frontier *TimestampVector) error {
	s.purge(frontier)
	return nil
}

// purge returns the operations it removed so that BadgerStore can delete the
// corresponding keys.
func (s *InmemStore) purge(frontier *TimestampVector) []Operation {
	s.Lock()
	defer s.Unlock()

	removed := []Operation{}
	for _, p := range s.participants {
		limit := frontier.GetLast(p).Seq

		ops := s.operations[p]
		i := 0
		for i < len(ops) && ops[i].Seq() <= limit {
			i++
		}
		if i == 0 {
			continue
		}

		s.floor.UpdateTimestamp(ops[i-1].Timestamp)
		removed = append(removed, ops[:i]...)
		s.operations[p] = append([]Operation{}, ops[i:]...)
	}

	return removed
}

// NeedBootstrap implements the Store interface. An InmemStore is always new.
func (s *InmemStore) NeedBootstrap() bool {
	return false
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	return nil
}

// StorePath implements the Store interface.
func (s *InmemStore) StorePath() string {
	return ""
}
