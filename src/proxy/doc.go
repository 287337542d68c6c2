// Package proxy defines AppProxy: the interface between a TSAE node and the
// application whose state is replicated.
//
// The node forwards every operation it admits to its Log, local or received
// from a peer, to the AppProxy: creations through ApplyCreated, deletions
// through ApplyRemoved. Operations are forwarded in issuance order for every
// origin, and exactly once per node. The application submits new operations
// through the SubmitCh channel; the node timestamps them and propagates them
// to the other participants.
//
// InmemProxy, in the inmem sub-package, implements AppProxy with native
// callback handlers to integrate the node as a regular Go dependency.
package proxy
