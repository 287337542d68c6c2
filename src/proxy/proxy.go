package proxy

import (
	"github.com/mosaicnetworks/tsae/src/node/state"
	"github.com/mosaicnetworks/tsae/src/tsae"
)

// Submission is an operation requested by the application. The node assigns
// it a timestamp.
type Submission struct {
	Type    tsae.OperationType
	Payload []byte
}

// AppProxy provides an interface for the node to talk to the application.
type AppProxy interface {
	// SubmitCh returns the channel on which the application submits new
	// operations.
	SubmitCh() chan Submission
	// ApplyCreated is called for every admitted creation operation.
	ApplyCreated(payload []byte) error
	// ApplyRemoved is called for every admitted deletion operation.
	ApplyRemoved(payload []byte) error
	// OnStateChanged notifies the application of a node state change.
	OnStateChanged(state.State) error
}
