package behavior

import "maps"

const (
	// RewindThreshold is how far behind the previous position a seek must land
	// to count as a rewind, in seconds.
	RewindThreshold = 5.0
	// SegmentSeconds is the width of a watch-time bucket.
	SegmentSeconds = 10
	// RewindTrip and PauseTrip are the counts that trip confusion detection.
	RewindTrip = 3
	PauseTrip  = 5
)

// Sample accumulates playback signals between confusion trips.
type Sample struct {
	RewindCount          int         `json:"rewindCount"`
	PauseCount           int         `json:"pauseCount"`
	PlaybackSpeedChanges int         `json:"playbackSpeedChanges"`
	SegmentWatchTimes    map[int]int `json:"segmentWatchTimes"`
	LastPosition         float64     `json:"lastPosition"`
}

// Clone returns a deep copy of s.
func (s Sample) Clone() Sample {
	out := s
	out.SegmentWatchTimes = make(map[int]int, len(s.SegmentWatchTimes))
	maps.Copy(out.SegmentWatchTimes, s.SegmentWatchTimes)
	return out
}

// Tripped reports whether the sample crosses the confusion thresholds.
// Speed changes are tracked but do not contribute.
func (s Sample) Tripped() bool {
	return s.RewindCount >= RewindTrip || s.PauseCount >= PauseTrip
}

// SegmentStart returns the start of the 10-second bucket containing position.
func SegmentStart(position float64) int {
	if position < 0 {
		return 0
	}
	bucket := int(position) / SegmentSeconds
	return bucket * SegmentSeconds
}
