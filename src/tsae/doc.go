// Package tsae implements the data structures of Timestamped Anti-Entropy
// replication.
//
// A Timestamp identifies an operation by its origin and a per-origin sequence
// number. A TimestampVector, called the summary, records for every participant
// the last operation a node has incorporated. A TimestampMatrix, called the
// ack, records the summary last reported by every participant; the column-wise
// minimum of the ack is the frontier of operations that every participant has
// seen. The Log keeps, per origin, the gap-free sequence of operations that a
// node can still retransmit, and is purged up to that frontier.
//
// None of the vector or matrix types are safe for concurrent use. A node owns
// one summary, one ack and one Log, and serializes every mutation under a
// single lock. Values handed to other goroutines, or to the wire, are clones.
//
// The package also defines the Store interface, through which a node persists
// its state, with in-memory, Badger and SQLite implementations.
package tsae
