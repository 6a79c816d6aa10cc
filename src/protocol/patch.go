package protocol

import (
	"errors"
	"reflect"
)

// ErrNotDiffable is returned when no patch can be generated for a pair of
// snapshots. The sender must fall back to a full snapshot.
var ErrNotDiffable = errors.New("snapshots are not diff compatible")

// A Patch is the minimal field level delta between two snapshots of the
// same shape. Nil fields are unchanged.
type Patch struct {
	Owner   *OwnerInfo    `msgpack:"owner,omitempty"`
	Paused  *bool         `msgpack:"paused,omitempty"`
	Mode    *PlayMode     `msgpack:"mode,omitempty"`
	Current *CurrentPatch `msgpack:"current,omitempty"`
	History *[]Track      `msgpack:"history,omitempty"`
	Queue   *[]Track      `msgpack:"queue,omitempty"`
}

// CurrentPatch replaces the current track. A nil Track unloads it.
type CurrentPatch struct {
	Track *Track `msgpack:"track,omitempty"`
}

// IsEmpty reports whether applying the patch would change nothing.
func (p *Patch) IsEmpty() bool {
	return p.Owner == nil && p.Paused == nil && p.Mode == nil &&
		p.Current == nil && p.History == nil && p.Queue == nil
}

// DiffState generates the patch that transforms prev into next.
func DiffState(prev, next *PlayerState) (*Patch, error) {
	if prev == nil || next == nil {
		return nil, ErrNotDiffable
	}

	patch := &Patch{}
	if prev.Owner != next.Owner {
		owner := next.Owner
		patch.Owner = &owner
	}
	if prev.Paused != next.Paused {
		paused := next.Paused
		patch.Paused = &paused
	}
	if prev.Mode != next.Mode {
		mode := next.Mode
		patch.Mode = &mode
	}
	if !trackPtrEqual(prev.Current, next.Current) {
		patch.Current = &CurrentPatch{Track: cloneTrack(next.Current)}
	}
	if !reflect.DeepEqual(prev.History, next.History) {
		history := cloneTracks(next.History)
		patch.History = &history
	}
	if !reflect.DeepEqual(prev.Queue, next.Queue) {
		queue := cloneTracks(next.Queue)
		patch.Queue = &queue
	}
	return patch, nil
}

// Apply returns the snapshot that results from applying the patch to base.
// For any two diff compatible snapshots a and b,
// DiffState(a, b).Apply(a) equals b.
func (p *Patch) Apply(base PlayerState) PlayerState {
	next := PlayerState{
		Owner:   base.Owner,
		Paused:  base.Paused,
		Mode:    base.Mode,
		Current: cloneTrack(base.Current),
		History: cloneTracks(base.History),
		Queue:   cloneTracks(base.Queue),
	}
	if p.Owner != nil {
		next.Owner = *p.Owner
	}
	if p.Paused != nil {
		next.Paused = *p.Paused
	}
	if p.Mode != nil {
		next.Mode = *p.Mode
	}
	if p.Current != nil {
		next.Current = cloneTrack(p.Current.Track)
	}
	if p.History != nil {
		next.History = cloneTracks(*p.History)
	}
	if p.Queue != nil {
		next.Queue = cloneTracks(*p.Queue)
	}
	return next
}

func trackPtrEqual(a, b *Track) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func cloneTrack(t *Track) *Track {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneTracks(tracks []Track) []Track {
	if tracks == nil {
		return nil
	}
	out := make([]Track, len(tracks))
	copy(out, tracks)
	return out
}
