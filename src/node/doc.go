// Package node implements the reactive component of a TSAE node.
//
// This is the part of TSAE that runs the anti-entropy sessions and owns the
// replicated state: the Log of operations, the summary vector and the ack
// matrix. Node implements a state machine where the states are defined in the
// state package.
//
// Sessions
//
// Nodes communicate with other nodes in a fully connected network. On every
// heartbeat, a node chooses a few partners at random and runs a session with
// each of them. A session is a single connection carrying, in each direction,
// one AE_REQUEST (the sender's summary and ack), the operations the other side
// is missing, and a closing END_TSAE.
//
// The originator sends its AE_REQUEST first. The partner answers with the
// operations the originator lacks, followed by its own AE_REQUEST. The
// originator streams back what the partner lacks and ends its stream with
// END_TSAE. The partner drains the stream, merges the originator's state, and
// echoes END_TSAE, which lets the originator merge the partner's state.
//
// Operations are admitted to the Log in issuance order only. Duplicates and
// gaps are dropped and will be retransmitted, correctly ordered, by a later
// session, so a failed session never corrupts the Log.
//
// Purging
//
// The ack matrix records the last summary each participant reported. Its
// column minimum is the frontier of operations that every participant has
// seen. Operations below the frontier are discarded after each session.
package node
