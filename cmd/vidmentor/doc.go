// Command vidmentor is the foreground side of the assistant. It starts and
// stops the background daemon, edits settings, runs assistance requests and
// watches playback events for signs of confusion.
package main
