// Package grid owns a fixed W x H collection of slots and is the only
// service allowed to mutate them or the resource totals derived from them.
// All operations are serialised behind a single mutex; notifications are
// collected while the lock is held and emitted once it is released, so a
// sink may call back into the grid.
package grid
