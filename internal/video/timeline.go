package video

import (
	"fmt"
)

// Interval is one caption's display window on the video timeline, aligned
// to the audio segment it belongs to.
type Interval struct {
	Index int
	Text  string
	Start float64
	End   float64
}

// SyncError reports an audio/caption pairing failure: the two sequences
// cannot be zipped one-to-one.
type SyncError struct {
	AudioCount   int
	CaptionCount int
	Detail       string
}

func (e *SyncError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("audio/caption sync failed: %s (audio=%d captions=%d)", e.Detail, e.AudioCount, e.CaptionCount)
	}
	return fmt.Sprintf("audio/caption sync failed: audio=%d captions=%d", e.AudioCount, e.CaptionCount)
}

// BuildTimeline pairs audio durations with caption texts by position and
// lays them out back to back: each interval starts where the previous one
// ended, the first at zero. Counts must match exactly; a mismatch means
// the script and the rendered audio have diverged and captions would drift.
func BuildTimeline(durations []float64, captions []string) ([]Interval, error) {
	if len(durations) != len(captions) {
		return nil, &SyncError{AudioCount: len(durations), CaptionCount: len(captions)}
	}
	intervals := make([]Interval, 0, len(durations))
	cursor := 0.0
	for i, d := range durations {
		if d < 0 {
			return nil, &SyncError{
				AudioCount:   len(durations),
				CaptionCount: len(captions),
				Detail:       fmt.Sprintf("negative duration at %d", i),
			}
		}
		intervals = append(intervals, Interval{
			Index: i,
			Text:  captions[i],
			Start: cursor,
			End:   cursor + d,
		})
		cursor += d
	}
	return intervals, nil
}

// TotalDuration returns the end of the last interval, zero for an empty
// timeline.
func TotalDuration(intervals []Interval) float64 {
	if len(intervals) == 0 {
		return 0
	}
	return intervals[len(intervals)-1].End
}
