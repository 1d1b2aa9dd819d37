// Package protocol defines the request/response envelopes exchanged between
// foreground contexts and the background daemon, the closed set of message
// types, and the transport strategy each type uses.
package protocol
