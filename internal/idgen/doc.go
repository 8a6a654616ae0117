// Package idgen generates the unique suffix of process identifiers. It wraps
// the UUID generator so that tests can stub it with predictable values.
package idgen
