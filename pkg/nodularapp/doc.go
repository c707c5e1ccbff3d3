// Package nodularapp wires the nodular components into a command line
// application.
//
// [Main] parses the command line with [Parse], opens the store named by
// the configuration and runs one command:
//
//	nodular migrate                     create or update the schema
//	nodular -root site serve            publish the tree named "site"
//	nodular -root site tree             print the tree
//	nodular -root site dump site.cbor   write a snapshot
//	nodular restore site.cbor           load a snapshot
//	nodular changes -since 1h           print recent change log entries
//
// # Configuration
//
// See [github.com/hasgeek/nodular/pkg/config] for the file format and the
// environment variables. Flags given on the command line win over both.
//
// # Read-only mode
//
// With -readonly (or NODULAR_READONLY=true) the store rejects every
// transaction with store.ErrReadOnly, which the server reports as 503.
// Reads and publishing keep working. [App.SetReadOnly] flips the mode at
// runtime.
package nodularapp
