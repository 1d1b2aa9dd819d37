// Package transport is the foreground side of the message layer. A Messenger
// picks the delivery strategy for each message type, retries transient
// failures, falls back to a persistent channel, and bounds every call with a
// local timeout. UserMessage renders failures for display.
package transport
