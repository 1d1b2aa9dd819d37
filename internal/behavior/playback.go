package behavior

import "fmt"

// PlaybackEvent is one line of a playback event stream, as read by the
// monitor command: {"event":"timeupdate","position":42.5}.
type PlaybackEvent struct {
	Event    string  `json:"event"`
	Position float64 `json:"position"`
}

// Apply feeds a playback event to the monitor. Position-bearing events record
// the position first.
func (m *Monitor) Apply(ev PlaybackEvent) error {
	switch ev.Event {
	case "timeupdate", "seeked", "position":
		m.UpdatePosition(ev.Position)
	case "pause":
		m.Pause()
	case "play", "playing":
		m.Play()
	case "ratechange":
		m.RateChange()
	case "tick":
		m.Check()
	default:
		return fmt.Errorf("unsupported playback event %q", ev.Event)
	}
	return nil
}
