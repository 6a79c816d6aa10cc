package router

import (
	"context"
	"time"

	"syncopate/src/library"
	"syncopate/src/player"
)

// A Command is one player mutation dispatched through the router.
type Command interface {
	apply(ctx context.Context, p *player.Player) error
}

// PauseResume toggles between playing and paused.
type PauseResume struct{}

func (PauseResume) apply(ctx context.Context, p *player.Player) error {
	return p.DynamicPauseResume(ctx)
}

// Skip advances the queue by N tracks.
type Skip struct{ N int }

func (c Skip) apply(ctx context.Context, p *player.Player) error {
	return p.Skip(ctx, c.N)
}

// BackSkip rewinds the queue by N tracks.
type BackSkip struct{ N int }

func (c BackSkip) apply(ctx context.Context, p *player.Player) error {
	return p.BackSkip(ctx, c.N)
}

// Jump seeks within the current track.
type Jump struct{ Pos time.Duration }

func (c Jump) apply(ctx context.Context, p *player.Player) error {
	return p.Jump(ctx, c.Pos)
}

// SetLoopMode sets or, when repeated, resets the loop mode.
type SetLoopMode struct{ Mode player.LoopMode }

func (c SetLoopMode) apply(ctx context.Context, p *player.Player) error {
	p.SetLoopMode(c.Mode)
	return nil
}

// Enqueue appends tracks to the playlist.
type Enqueue struct{ Tracks []library.Track }

func (c Enqueue) apply(ctx context.Context, p *player.Player) error {
	return p.Enqueue(ctx, c.Tracks...)
}

// ClearQueue empties the playlist.
type ClearQueue struct{}

func (ClearQueue) apply(ctx context.Context, p *player.Player) error {
	p.ClearQueue()
	return nil
}
