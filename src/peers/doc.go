// Package peers defines the concept of a TSAE peer and implements functions
// to manage collections of peers.
//
// A peer is identified by a unique ID, which is the identity used as origin in
// timestamps and as row and column keys in summaries and acks, and by the
// network address where its node can be reached. A Moniker is an optional,
// non-unique, user-friendly name.
//
// The participant set of a TSAE group is fixed. Upon starting up, a node
// expects to find a peers.json file in its data directory listing every
// participant, itself included.
package peers
