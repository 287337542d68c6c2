package tsae

import (
	"database/sql"
	"fmt"
	"time"

	cm "github.com/mosaicnetworks/tsae/src/common"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface over a SQLite database in WAL
// mode. Like BadgerStore, it serves reads from an InmemStore and writes
// through to the database.
type SQLiteStore struct {
	inmemStore    *InmemStore
	db            *sql.DB
	path          string
	needBootstrap bool
}

// LoadOrCreateSQLiteStore opens the database at path. If it already holds a
// participant set, the store is loaded from it and participants is ignored.
func LoadOrCreateSQLiteStore(participants []string, path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &SQLiteStore{
		db:   db,
		path: path,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	existing, err := s.dbGetParticipants()
	if err != nil {
		db.Close()
		return nil, err
	}

	if len(existing) == 0 {
		s.inmemStore = NewInmemStore(participants)
		if err := s.dbSetParticipants(s.inmemStore.Participants()); err != nil {
			db.Close()
			return nil, err
		}
		return s, nil
	}

	if err := s.load(existing); err != nil {
		db.Close()
		return nil, err
	}
	s.needBootstrap = true

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS participants (
		id TEXT PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS state (
		key   TEXT PRIMARY KEY,
		value BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS operations (
		origin  TEXT    NOT NULL,
		seq     INTEGER NOT NULL,
		type    INTEGER NOT NULL,
		payload BLOB,
		PRIMARY KEY (origin, seq)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) load(participants []string) error {
	inmemStore := NewInmemStore(participants)

	if summary, err := s.dbGetVector(summaryKey); err == nil {
		inmemStore.summary = summary
	} else if !cm.IsStore(err, cm.KeyNotFound) {
		return err
	}

	if data, err := s.dbGetState(ackKey); err == nil {
		ack, err := UnmarshalMatrix(data)
		if err != nil {
			return err
		}
		inmemStore.ack = ack
	} else if !cm.IsStore(err, cm.KeyNotFound) {
		return err
	}

	if floor, err := s.dbGetVector(floorKey); err == nil {
		inmemStore.floor = floor
	} else if !cm.IsStore(err, cm.KeyNotFound) {
		return err
	}

	rows, err := s.db.Query(`SELECT origin, seq, type, payload FROM operations ORDER BY origin, seq`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			op     Operation
			opType int
		)
		if err := rows.Scan(&op.Timestamp.Origin, &op.Timestamp.Seq, &opType, &op.Payload); err != nil {
			return err
		}
		op.Type = OperationType(opType)
		if err := inmemStore.SetOperation(op); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	s.inmemStore = inmemStore

	return nil
}

// Participants implements the Store interface.
func (s *SQLiteStore) Participants() []string {
	return s.inmemStore.Participants()
}

// GetSummary implements the Store interface.
func (s *SQLiteStore) GetSummary() (*TimestampVector, error) {
	return s.inmemStore.GetSummary()
}

// SetSummary implements the Store interface.
func (s *SQLiteStore) SetSummary(summary *TimestampVector) error {
	if err := s.inmemStore.SetSummary(summary); err != nil {
		return err
	}
	val, err := summary.Marshal()
	if err != nil {
		return err
	}
	return s.dbSetState(summaryKey, val)
}

// GetAck implements the Store interface.
func (s *SQLiteStore) GetAck() (*TimestampMatrix, error) {
	return s.inmemStore.GetAck()
}

// SetAck implements the Store interface.
func (s *SQLiteStore) SetAck(ack *TimestampMatrix) error {
	if err := s.inmemStore.SetAck(ack); err != nil {
		return err
	}
	val, err := ack.Marshal()
	if err != nil {
		return err
	}
	return s.dbSetState(ackKey, val)
}

// GetFloor implements the Store interface.
func (s *SQLiteStore) GetFloor() (*TimestampVector, error) {
	return s.inmemStore.GetFloor()
}

// SetOperation implements the Store interface.
func (s *SQLiteStore) SetOperation(op Operation) error {
	if err := s.inmemStore.SetOperation(op); err != nil {
		return err
	}
	return retryOnContention(func() error {
		_, err := s.db.Exec(
			`INSERT OR REPLACE INTO operations (origin, seq, type, payload) VALUES (?, ?, ?, ?)`,
			op.Origin(), op.Seq(), int(op.Type), op.Payload,
		)
		return err
	})
}

// ParticipantOperations implements the Store interface.
func (s *SQLiteStore) ParticipantOperations(participant string) ([]Operation, error) {
	return s.inmemStore.ParticipantOperations(participant)
}

// Purge implements the Store interface.
func (s *SQLiteStore) Purge(frontier *TimestampVector) error {
	s.inmemStore.purge(frontier)

	floor, err := s.inmemStore.GetFloor()
	if err != nil {
		return err
	}
	val, err := floor.Marshal()
	if err != nil {
		return err
	}

	return retryOnContention(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		for _, p := range floor.Participants() {
			if _, err := tx.Exec(
				`DELETE FROM operations WHERE origin = ? AND seq <= ?`,
				p, floor.GetLast(p).Seq,
			); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(
			`INSERT INTO state (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			floorKey, val,
		); err != nil {
			return err
		}

		return tx.Commit()
	})
}

// NeedBootstrap implements the Store interface.
func (s *SQLiteStore) NeedBootstrap() bool {
	return s.needBootstrap
}

// Close implements the Store interface.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// StorePath implements the Store interface.
func (s *SQLiteStore) StorePath() string {
	return s.path
}

func (s *SQLiteStore) dbGetParticipants() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM participants ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		res = append(res, id)
	}
	return res, rows.Err()
}

func (s *SQLiteStore) dbSetParticipants(participants []string) error {
	return retryOnContention(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		for _, p := range participants {
			if _, err := tx.Exec(`INSERT OR IGNORE INTO participants (id) VALUES (?)`, p); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

func (s *SQLiteStore) dbGetState(key string) ([]byte, error) {
	var val []byte
	err := s.db.QueryRow(`SELECT value FROM state WHERE key = ?`, key).Scan(&val)
	if err == sql.ErrNoRows {
		return nil, cm.NewStoreErr("SQLite", cm.KeyNotFound, key)
	}
	return val, err
}

func (s *SQLiteStore) dbSetState(key string, val []byte) error {
	return retryOnContention(func() error {
		_, err := s.db.Exec(
			`INSERT INTO state (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, val,
		)
		return err
	})
}

func (s *SQLiteStore) dbGetVector(key string) (*TimestampVector, error) {
	data, err := s.dbGetState(key)
	if err != nil {
		return nil, err
	}
	return UnmarshalVector(data)
}
