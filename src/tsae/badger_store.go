package tsae

import (
	"fmt"
	"os"
	"sort"

	"github.com/dgraph-io/badger"
	cm "github.com/mosaicnetworks/tsae/src/common"
)

const (
	participantsKey = "participants"
	summaryKey      = "summary"
	ackKey          = "ack"
	floorKey        = "floor"
	operationPrefix = "op"
)

// BadgerStore implements the Store interface with a write-through cache: reads
// are served by an InmemStore and every write is also committed to a Badger
// database.
type BadgerStore struct {
	inmemStore    *InmemStore
	db            *badger.DB
	path          string
	needBootstrap bool
}

// NewBadgerStore creates a brand new Store with a new database.
func NewBadgerStore(participants []string, path string) (*BadgerStore, error) {
	handle, err := openBadger(path)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		inmemStore: NewInmemStore(participants),
		db:         handle,
		path:       path,
	}

	if err := store.dbSetParticipants(store.inmemStore.Participants()); err != nil {
		return nil, err
	}

	return store, nil
}

// LoadBadgerStore creates a Store from an existing database.
func LoadBadgerStore(path string) (*BadgerStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	handle, err := openBadger(path)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		db:            handle,
		path:          path,
		needBootstrap: true,
	}

	if err := store.load(); err != nil {
		handle.Close()
		return nil, err
	}

	return store, nil
}

// load reads the whole database into the in-memory cache.
func (s *BadgerStore) load() error {
	participants, err := s.dbGetParticipants()
	if err != nil {
		return err
	}

	inmemStore := NewInmemStore(participants)

	if summary, err := s.dbGetVector(summaryKey); err == nil {
		inmemStore.summary = summary
	} else if !cm.IsStore(err, cm.KeyNotFound) {
		return err
	}

	if ack, err := s.dbGetAck(); err == nil {
		inmemStore.ack = ack
	} else if !cm.IsStore(err, cm.KeyNotFound) {
		return err
	}

	if floor, err := s.dbGetVector(floorKey); err == nil {
		inmemStore.floor = floor
	} else if !cm.IsStore(err, cm.KeyNotFound) {
		return err
	}

	ops, err := s.dbOperations()
	if err != nil {
		return err
	}
	for _, op := range ops {
		if err := inmemStore.SetOperation(op); err != nil {
			return err
		}
	}

	s.inmemStore = inmemStore

	return nil
}

// LoadOrCreateBadgerStore loads the database at path if there is one, and
// creates a new one otherwise.
func LoadOrCreateBadgerStore(participants []string, path string) (*BadgerStore, error) {
	store, err := LoadBadgerStore(path)

	if err != nil {
		store, err = NewBadgerStore(participants, path)

		if err != nil {
			return nil, err
		}
	}

	return store, nil
}

func openBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	opts.SyncWrites = false
	return badger.Open(opts)
}

//==============================================================================
//Keys

func operationKey(ts Timestamp) []byte {
	return []byte(fmt.Sprintf("%s_%s_%019d", operationPrefix, ts.Origin, ts.Seq))
}

//==============================================================================
//Implement the Store interface

// Participants implements the Store interface.
func (s *BadgerStore) Participants() []string {
	return s.inmemStore.Participants()
}

// GetSummary implements the Store interface.
func (s *BadgerStore) GetSummary() (*TimestampVector, error) {
	return s.inmemStore.GetSummary()
}

// SetSummary implements the Store interface.
func (s *BadgerStore) SetSummary(summary *TimestampVector) error {
	if err := s.inmemStore.SetSummary(summary); err != nil {
		return err
	}
	return s.dbSetVector(summaryKey, summary)
}

// GetAck implements the Store interface.
func (s *BadgerStore) GetAck() (*TimestampMatrix, error) {
	return s.inmemStore.GetAck()
}

// SetAck implements the Store interface.
func (s *BadgerStore) SetAck(ack *TimestampMatrix) error {
	if err := s.inmemStore.SetAck(ack); err != nil {
		return err
	}
	return s.dbSetAck(ack)
}

// GetFloor implements the Store interface.
func (s *BadgerStore) GetFloor() (*TimestampVector, error) {
	return s.inmemStore.GetFloor()
}

// SetOperation implements the Store interface.
func (s *BadgerStore) SetOperation(op Operation) error {
	if err := s.inmemStore.SetOperation(op); err != nil {
		return err
	}
	return s.dbSetOperation(op)
}

// ParticipantOperations implements the Store interface.
func (s *BadgerStore) ParticipantOperations(participant string) ([]Operation, error) {
	return s.inmemStore.ParticipantOperations(participant)
}

// Purge implements the Store interface.
func (s *BadgerStore) Purge(frontier *TimestampVector) error {
	removed := s.inmemStore.purge(frontier)

	floor, err := s.inmemStore.GetFloor()
	if err != nil {
		return err
	}

	return s.dbPurge(removed, floor)
}

// NeedBootstrap implements the Store interface.
func (s *BadgerStore) NeedBootstrap() bool {
	return s.needBootstrap
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	if err := s.inmemStore.Close(); err != nil {
		return err
	}
	return s.db.Close()
}

// StorePath implements the Store interface.
func (s *BadgerStore) StorePath() string {
	return s.path
}

//++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++
//DB Methods

func (s *BadgerStore) dbGet(key string) ([]byte, error) {
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, mapError(err, "Badger", key)
	}
	return val, nil
}

func (s *BadgerStore) dbSet(key string, val []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), val)
	})
}

func (s *BadgerStore) dbGetParticipants() ([]string, error) {
	data, err := s.dbGet(participantsKey)
	if err != nil {
		return nil, err
	}
	var participants []string
	if err := unmarshal(data, &participants); err != nil {
		return nil, err
	}
	return participants, nil
}

func (s *BadgerStore) dbSetParticipants(participants []string) error {
	val, err := marshal(participants)
	if err != nil {
		return err
	}
	return s.dbSet(participantsKey, val)
}

func (s *BadgerStore) dbGetVector(key string) (*TimestampVector, error) {
	data, err := s.dbGet(key)
	if err != nil {
		return nil, err
	}
	return UnmarshalVector(data)
}

func (s *BadgerStore) dbSetVector(key string, tv *TimestampVector) error {
	val, err := tv.Marshal()
	if err != nil {
		return err
	}
	return s.dbSet(key, val)
}

func (s *BadgerStore) dbGetAck() (*TimestampMatrix, error) {
	data, err := s.dbGet(ackKey)
	if err != nil {
		return nil, err
	}
	return UnmarshalMatrix(data)
}

func (s *BadgerStore) dbSetAck(ack *TimestampMatrix) error {
	val, err := ack.Marshal()
	if err != nil {
		return err
	}
	return s.dbSet(ackKey, val)
}

func (s *BadgerStore) dbSetOperation(op Operation) error {
	val, err := op.Marshal()
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(operationKey(op.Timestamp), val)
	})
}

// dbOperations returns every persisted operation, sorted by origin and
// sequence number.
func (s *BadgerStore) dbOperations() ([]Operation, error) {
	res := []Operation{}
	prefix := []byte(operationPrefix + "_")

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var op Operation
			if err := op.Unmarshal(val); err != nil {
				return err
			}
			res = append(res, op)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(res, func(i, j int) bool {
		if res[i].Origin() != res[j].Origin() {
			return res[i].Origin() < res[j].Origin()
		}
		return res[i].Seq() < res[j].Seq()
	})

	return res, nil
}

func (s *BadgerStore) dbPurge(removed []Operation, floor *TimestampVector) error {
	val, err := floor.Marshal()
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		for _, op := range removed {
			if err := txn.Delete(operationKey(op.Timestamp)); err != nil {
				return err
			}
		}
		return txn.Set([]byte(floorKey), val)
	})
}

func isDBKeyNotFound(err error) bool {
	return err == badger.ErrKeyNotFound
}

func mapError(err error, name, key string) error {
	if err != nil {
		if isDBKeyNotFound(err) {
			return cm.NewStoreErr(name, cm.KeyNotFound, key)
		}
	}
	return err
}
