// Package preflight provides readiness checks for the filesystem paths and
// AI settings vidmentor depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll before binding its sockets and refuses to start
//     when the data or log directory is unusable.
//   - The CLI "vidmentor status" command shows each result as a status line.
package preflight
