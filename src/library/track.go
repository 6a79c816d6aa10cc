package library

import (
	"fmt"
	"time"
)

// Track holds all information associated with a single playable item.
//
// Position is the playback offset the track was captured with. It is only
// meaningful relative to the moment of capture, see Current.
type Track struct {
	URI      string        `json:"uri"`
	Title    string        `json:"title,omitempty"`
	Duration time.Duration `json:"duration"`
	Position time.Duration `json:"position"`
}

func (track Track) String() string {
	return fmt.Sprintf("%s (%v)", track.Title, track.Duration)
}

// Current pairs the track that is loaded into a player with the playback
// offset at the time the pair was captured.
//
// The real offset is always derived at read time so that the stored value
// does not drift while the track plays.
type Current struct {
	Elapsed    time.Duration `json:"elapsed"`
	CapturedAt time.Time     `json:"captured_at"`
	Track      Track         `json:"track"`
}

// Position returns the playback offset as of now.
func (c Current) Position(now time.Time) time.Duration {
	return c.Elapsed + now.Sub(c.CapturedAt)
}
