// Package daemon coordinates the long-running background process that owns
// settings and AI calls.
//
// It wires configuration, the settings store and the message router into a
// single lifecycle with flock-based locking to prevent multiple instances.
// Every dispatch and every open persistent channel counts as activity; when
// the process has been idle for the configured window with no channel open it
// requests its own shutdown, the way a host suspends an idle background worker.
// Foreground contexts wake it again on demand.
//
// Transports live in ipc (transient) and port (persistent); both funnel into
// Daemon.Dispatch.
package daemon
