package analytics

import (
	"math"
	"time"
)

// Sample is one recorded playback position.
type Sample struct {
	Position  float64 `json:"position"`
	Timestamp int64   `json:"timestamp"`
}

// Session is a snapshot of one player mount's watch data.
type Session struct {
	ID         string
	StartedAt  time.Time
	Positions  []Sample
	Quarters   []int
	CTAClicked bool
	Ended      bool
	WatchTime  float64
}

// QuarterEvent is posted the first time a quarter of the video is reached.
type QuarterEvent struct {
	Quarter   int     `json:"quarter"`
	SessionID string  `json:"sessionId"`
	Position  float64 `json:"position"`
}

// CTAClickEvent is posted when the viewer follows the call-to-action.
type CTAClickEvent struct {
	SessionID string `json:"sessionId"`
}

// ViewReport is the completion report sent once per finished session.
type ViewReport struct {
	SessionID         string    `json:"sessionId"`
	StartTime         time.Time `json:"startTime"`
	EndTime           time.Time `json:"endTime"`
	WatchTime         float64   `json:"watchTime"`
	PlaybackPositions []Sample  `json:"playbackPositions"`
	CompletedQuarters []int     `json:"completedQuarters"`
	IsCompleteView    bool      `json:"isCompleteView"`
}

// quarterSet is the monotonic set of reached quarter indices.
type quarterSet [4]bool

func (q *quarterSet) add(i int) bool {
	if i < 0 || i >= len(q) || q[i] {
		return false
	}
	q[i] = true
	return true
}

func (q *quarterSet) list() []int {
	out := make([]int, 0, len(q))
	for i, ok := range q {
		if ok {
			out = append(out, i)
		}
	}
	return out
}

// QuarterIndex returns which quarter position falls in, or -1 when it cannot
// be computed. The final instant of the video belongs to the last quarter.
func QuarterIndex(position, duration float64) int {
	if !(duration > 0) || math.IsInf(duration, 0) || position < 0 || math.IsNaN(position) {
		return -1
	}
	i := int(position / (duration / 4))
	return min(i, 3)
}
