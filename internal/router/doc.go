// Package router dispatches request envelopes to exactly one handler per
// message type and normalizes the outcome into a response envelope.
//
// The router holds no state of its own. Handlers validate their required
// fields, call into the settings store or the AI gateway, and return a value
// that becomes the response data. Errors, unknown types and handler panics all
// become failure responses; nothing escapes Dispatch.
package router
