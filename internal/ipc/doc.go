// Package ipc is the transient transport: JSON-RPC over a Unix domain socket.
//
// The daemon registers a single "Background" service with Dispatch, Status and
// Shutdown. Sender performs one dial-dispatch-close cycle per request, which is
// cheap for settings reads and writes but gives no protection against the
// daemon suspending mid-call; long AI operations use the port package instead.
package ipc
