// Package extension provides the run-time table of process kinds: every
// kind maps to a constructor and, optionally, to the Go type its state
// record decodes into.
//
// The table is normally populated through the options of the root procslot
// package, so most applications do not import this package directly.
package extension
