// Package policy provides the declarative unlock progression applied after
// a process starts: how many locked slots are opened and for which process
// kinds.
package policy
