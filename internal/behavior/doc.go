// Package behavior watches playback events for patterns that suggest a
// viewer is struggling.
//
// Monitor is a threshold-triggered counter automaton over a single Sample.
// Position updates count rewinds and tally 10-second segment visits; pause
// and rate-change events bump their counters. While started, a periodic tick
// checks whether rewinds or pauses crossed their thresholds and, if so,
// publishes a confusion-detected event and resets the counters. Segment
// history survives resets.
package behavior
