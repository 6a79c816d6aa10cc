package player

import (
	"context"
	"errors"
	"time"

	"syncopate/src/library"
)

var (
	// ErrPlaylistFull is returned by Enqueue when the first track of a batch
	// does not fit into the playlist.
	ErrPlaylistFull = errors.New("playlist is full")

	// ErrNoCurrentTrack is returned by operations that require a loaded track.
	ErrNoCurrentTrack = errors.New("there is no current track")

	// ErrProviderGone indicates that the connection to the playback provider
	// was lost for good. Errors wrapping it are fatal: the player they came
	// from must be torn down.
	ErrProviderGone = errors.New("playback provider connection closed")
)

// IsFatal reports whether an error returned from a player operation requires
// the player to be destroyed.
func IsFatal(err error) bool {
	return errors.Is(err, ErrProviderGone)
}

// An EventSink consumes the playback progress reports emitted by a
// Provider's event loop.
type EventSink interface {
	// TrackEnd reports that the loaded track finished playing on its own.
	TrackEnd(ctx context.Context) error

	// Update reports the playback offset of the loaded track.
	Update(positionMillis int64)
}

// A Provider performs the actual audio playback for a player.
//
// Implementations talk to an external system, all calls may fail. Failures
// are reported to the caller and are not retried, except that a lost
// transport must be signalled by wrapping ErrProviderGone.
type Provider interface {
	// Play starts playback of the track from its beginning, replacing
	// whatever was playing before.
	Play(ctx context.Context, track library.Track) error

	// Stop halts playback. Stopping an already stopped provider is a no-op.
	Stop(ctx context.Context) error

	Pause(ctx context.Context) error
	Resume(ctx context.Context) error

	// Seek moves the playback position of the current track.
	Seek(ctx context.Context, pos time.Duration) error

	// Search resolves a free form query to candidate tracks. It does not
	// mutate any state.
	Search(ctx context.Context, query string) ([]library.Track, error)

	// Serve runs the provider's event loop, delivering end-of-track and
	// position reports to sink until ctx ends. It is run once per player.
	Serve(ctx context.Context, sink EventSink) error

	// Close releases the provider's resources.
	Close() error
}
