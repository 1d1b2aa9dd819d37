// Package pubsub provides a small typed publish/subscribe hub. The behavior
// monitor publishes trip events through it and the settings store fans out
// change notifications with it.
package pubsub
