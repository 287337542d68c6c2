package tsae

// Store is an interface for backend stores. A Store persists the state of a
// node: the operations of its Log, the last purge frontier, the summary and
// the ack.
type Store interface {
	// Participants returns the participant set the store was created with.
	Participants() []string
	// GetSummary returns the last persisted summary.
	GetSummary() (*TimestampVector, error)
	// SetSummary persists the summary.
	SetSummary(*TimestampVector) error
	// GetAck returns the last persisted ack matrix.
	GetAck() (*TimestampMatrix, error)
	// SetAck persists the ack matrix.
	SetAck(*TimestampMatrix) error
	// GetFloor returns the last purge frontier.
	GetFloor() (*TimestampVector, error)
	// SetOperation persists an operation admitted to the Log.
	SetOperation(Operation) error
	// ParticipantOperations returns the persisted operations of a participant
	// in sequence order.
	ParticipantOperations(participant string) ([]Operation, error)
	// Purge deletes the operations covered by frontier and records frontier as
	// the new floor.
	Purge(frontier *TimestampVector) error
	// NeedBootstrap returns true if the store was loaded from an existing
	// database and should be replayed into the node.
	NeedBootstrap() bool
	// Close closes the underlying database.
	Close() error
	// StorePath returns the filepath of the underlying database.
	StorePath() string
}
