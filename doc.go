// Package procslot manages a fixed grid of resource slots that host
// long-running processes.
//
// The grid splits a memory and CPU budget evenly across Width x Height slots.
// Processes are created from registered kinds, admitted first-fit in
// row-major order, suspended at a fraction of their CPU and unloaded with
// their state remembered by the slot. Every change is published as a
// notification to injected sinks.
//
//	srv, _ := procslot.New()
//	manager := srv.Manager()
//	id, _ := manager.CreateProcess(ctx, cardgame.Kind, nil)
//	slotID, _ := manager.StartProcess(ctx, id)
//	_ = srv.Runtime().Start(ctx)
//	defer srv.Runtime().Shutdown(ctx)
//
// See the service sub-packages for the grid, registry and manager.
package procslot
