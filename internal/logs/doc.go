// Package logs reads the daemon log file for the CLI.
//
// Tail returns the last lines of the file together with the byte offset to
// resume from; Follow streams complete lines appended after an offset until
// its context ends, starting over when the file is truncated or replaced.
package logs
