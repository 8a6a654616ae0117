// Package model contains the data types shared by the slot grid, the process
// registry and the process manager: resource requirements and usage, slot
// status, the versioned process state record and the process contract that
// game logic implements.
//
// The package has no behaviour of its own beyond small value helpers so that
// external process implementations can depend on it without pulling in the
// grid or manager services.
package model
