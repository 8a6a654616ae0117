// Package manager creates processes by kind, asks the grid to allocate them,
// keeps the registry in sync and relays process notifications.
//
// Lifecycle operations are serialised by the manager. Notifications raised
// by processes themselves are buffered and delivered once the operation that
// triggered them returns. A sink must not call mutating manager methods
// synchronously; read-only methods are safe.
package manager
