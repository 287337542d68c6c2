// Package replica wires the components of a TSAE node together: peers, store,
// transport, node and HTTP service.
//
// A Replica reads its participant set from peers.json in Config.DataDir. The
// local node is the peer whose net_addr is the advertised address of the node
// (Config.AdvertiseAddr, or Config.BindAddr when no advertise address is set).
package replica
