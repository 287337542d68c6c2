package proxy

import (
	"github.com/mosaicnetworks/tsae/src/node/state"
)

// ProxyHandler encapsulates callbacks to be called by the InmemProxy. This is
// the true contact surface between the node and the Application. The
// application must implement these handlers to process the operations
// replicated by the node.
type ProxyHandler interface {
	// CreatedHandler is called when the node admits a creation operation
	CreatedHandler(payload []byte) error

	// RemovedHandler is called when the node admits a deletion operation
	RemovedHandler(payload []byte) error

	// StateChangeHandler is called by OnStateChanged to notify that a node
	// entered a certain state
	StateChangeHandler(state.State) error
}
