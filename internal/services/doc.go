// Package services defines shared utilities consumed by the router handlers,
// the AI gateway, and both halves of the message transport.
//
// Key responsibilities:
//   - Context helpers that stamp request identifiers and origin contexts for
//     logging and change-notification filtering.
//   - Structured error markers plus the Wrap helper that classify failures
//     (configuration, validation, transport, timeout, provider) so they can be
//     carried across the process boundary as a stable error kind.
//
// Use these helpers when wiring new handlers so operational behaviour (error
// classification, observability, retries) stays uniform on both sides.
package services
