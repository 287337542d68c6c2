// Package config defines the configuration for a TSAE node.
//
// Regardless of how a node is started, directly from Go code or as a
// standalone process from the command line, it uses the Config object defined
// in this package to store and forward configuration options. On top of these
// configuration options, a node relies on a data directory, defined by
// Config.DataDir, where it expects to find a few additional configuration
// files:
//
//  peers.json // a JSON file listing every participant, the node included.
//  tsae.toml // (optional) configuration file read by the command line.
package config
