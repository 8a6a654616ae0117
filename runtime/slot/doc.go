// Package slot implements a single allocation unit of the grid: a fixed
// capacity, a lifecycle state machine and the saved state of a previously
// unloaded process. A Slot is not safe for concurrent use; the grid service
// serialises every call.
package slot
