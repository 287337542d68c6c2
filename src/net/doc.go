// Package net implements the transports over which TSAE nodes run their
// anti-entropy sessions.
//
// A session uses exactly one connection. The originator obtains it with
// Transport.Dial, and the partner receives the other end from
// Transport.Consumer. Both sides then exchange Messages with Conn.Send and
// Conn.Receive. Every message is framed as a msgpack encoded type byte
// followed by the msgpack encoded body, and every read or write is bounded by
// the transport timeout.
//
// Errors returned by a Conn are common.SessionErr values: TransportFailure
// for IO errors and expired deadlines, SerializationFailure for payloads that
// cannot be decoded.
//
// There are two implementations of the Transport interface:
//
// - Inmem: in-memory transport over net.Pipe, used for testing
//
// - TCP: NetworkTransport over a TCPStreamLayer
//
// To use a TCP transport, set the following configuration options in the
// Config object (cf config package):
//
// - BindAddr: the IP:PORT of the TCP socket that the node binds to.
//
// - AdvertiseAddr: (optional) The address that is advertised to other nodes. If
// BindAddr is a local address not reachable by other peers, it is usefull to
// set AdvertiseAddr to the reachable public address.
package net
