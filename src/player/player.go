package player

import (
	"context"
	"reflect"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"syncopate/src/library"
	"syncopate/src/util"
)

// QueueLimit bounds both the playlist and the history of a player.
const QueueLimit = 100

type LoopMode int

const (
	LoopOff LoopMode = iota
	LoopAll
	LoopOne
)

func (mode LoopMode) String() string {
	switch mode {
	case LoopAll:
		return "all"
	case LoopOne:
		return "one"
	default:
		return "off"
	}
}

// Owner identifies the playback unit a state belongs to, as shown to
// companion clients.
type Owner struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// State is an immutable snapshot of a player. A new one is published on the
// player's watch channel after every observable change.
type State struct {
	Owner    Owner
	Paused   bool
	Mode     LoopMode
	Current  *library.Current
	History  []library.Track
	Playlist []library.Track
}

// Equal compares two snapshots structurally.
func (s State) Equal(other State) bool {
	return reflect.DeepEqual(s, other)
}

// A Player owns the playback queue and history of one playback unit and
// drives its Provider. All command methods are serialized, no two commands
// mutate state concurrently.
type Player struct {
	channel  string
	provider Provider
	log      *log.Entry

	// mu serializes commands. Snapshot readers go through the watch channel
	// and never take it, so a slow provider call cannot stall them.
	mu       sync.Mutex
	owner    Owner
	paused   bool
	mode     LoopMode
	current  *library.Current
	history  *deque[library.Track]
	playlist *deque[library.Track]
	watch    *util.Watch[State]
	closed   bool

	// done is closed by Close and ends the Serve loop.
	done chan struct{}
}

// New creates a player for the given channel. The initial state, stopped
// with empty queues, is published immediately.
func New(channel string, owner Owner, provider Provider) *Player {
	p := &Player{
		channel:  channel,
		provider: provider,
		log:      log.WithField("channel", channel),
		owner:    owner,
		history:  newDeque[library.Track](QueueLimit),
		playlist: newDeque[library.Track](QueueLimit),
		done:     make(chan struct{}),
	}
	p.watch = util.NewWatch(p.snapshot())
	return p
}

func (p *Player) Channel() string {
	return p.channel
}

// Subscribe returns a receiver over the player's snapshot channel. Receivers
// observe at least the latest snapshot, intermediate ones may be coalesced.
func (p *Player) Subscribe() *util.WatchReceiver[State] {
	return p.watch.Subscribe()
}

func (p *Player) snapshot() State {
	var current *library.Current
	if p.current != nil {
		c := *p.current
		current = &c
	}
	return State{
		Owner:    p.owner,
		Paused:   p.paused,
		Mode:     p.mode,
		Current:  current,
		History:  p.history.Slice(),
		Playlist: p.playlist.Slice(),
	}
}

func (p *Player) publish() {
	p.watch.Set(p.snapshot())
}

func (p *Player) Resume(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resumeLocked(ctx)
}

func (p *Player) resumeLocked(ctx context.Context) error {
	if err := p.provider.Resume(ctx); err != nil {
		return err
	}
	p.paused = false
	p.publish()
	return nil
}

func (p *Player) Pause(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pauseLocked(ctx)
}

func (p *Player) pauseLocked(ctx context.Context) error {
	if err := p.provider.Pause(ctx); err != nil {
		return err
	}
	p.paused = true
	p.publish()
	return nil
}

// DynamicPauseResume resumes a paused player and pauses a playing one.
func (p *Player) DynamicPauseResume(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		return p.resumeLocked(ctx)
	}
	return p.pauseLocked(ctx)
}

// Skip pops the current track and n-1 further playlist tracks into the
// history, or to the back of the playlist when looping over all tracks. The
// provider's own end-of-track event drives playback of the next track.
func (p *Player) Skip(ctx context.Context, n int) error {
	if n == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	changed := false
	if p.current != nil {
		p.rotateOut(p.current.Track)
		p.current = nil
		changed = true
	}
	for i := 0; i < n-1; i++ {
		track, ok := p.playlist.PopFront()
		if !ok {
			break
		}
		p.rotateOut(track)
		changed = true
	}
	if changed {
		p.publish()
	}
	return p.provider.Stop(ctx)
}

// rotateOut files a track that finished or was skipped according to the
// loop mode.
func (p *Player) rotateOut(track library.Track) {
	if p.mode == LoopAll {
		p.playlist.PushBack(track)
	} else {
		p.history.PushFront(track)
	}
}

// BackSkip moves the current track and up to n history tracks back onto the
// front of the playlist. If no track was playing, the provider has no track
// end to report, so the next track is started explicitly.
func (p *Player) BackSkip(ctx context.Context, n int) error {
	if n == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	changed := false
	hadCurrent := false
	if p.current != nil {
		p.playlist.PushFront(p.current.Track)
		p.current = nil
		changed = true
		hadCurrent = true
	}
	for i := 0; i < n; i++ {
		track, ok := p.history.PopFront()
		if !ok {
			break
		}
		p.playlist.PushFront(track)
		changed = true
	}
	if changed {
		p.publish()
	}
	if hadCurrent {
		return p.provider.Stop(ctx)
	}
	return p.playNext(ctx)
}

// Enqueue appends tracks to the playlist. If the very first track does not
// fit, the whole batch is rejected with ErrPlaylistFull. Overflowing tracks
// later in the batch are dropped silently.
func (p *Player) Enqueue(ctx context.Context, tracks ...library.Track) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, track := range tracks {
		if !p.playlist.TryPushBack(track) && i == 0 {
			return ErrPlaylistFull
		}
	}
	if p.current == nil {
		return p.playNext(ctx)
	}
	p.publish()
	return nil
}

// Jump seeks within the current track.
func (p *Player) Jump(ctx context.Context, pos time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return ErrNoCurrentTrack
	}
	return p.provider.Seek(ctx, pos)
}

// ClearQueue empties the playlist. The current track keeps playing.
func (p *Player) ClearQueue() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playlist.Len() == 0 {
		return
	}
	p.playlist.Clear()
	p.publish()
}

// SetLoopMode sets the loop mode. Setting the mode the player is already in
// resets it to LoopOff.
func (p *Player) SetLoopMode(mode LoopMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode != mode {
		p.mode = mode
	} else {
		p.mode = LoopOff
	}
	p.publish()
}

// Search resolves a query to candidate tracks via the provider. No player
// state is touched.
func (p *Player) Search(ctx context.Context, query string) ([]library.Track, error) {
	return p.provider.Search(ctx, query)
}

// playNext rotates the current track out according to the loop mode, loads
// the next playlist track if there is one and starts or stops the provider
// accordingly.
func (p *Player) playNext(ctx context.Context) error {
	changed := false
	switch p.mode {
	case LoopOne:
		if p.current != nil {
			p.current.Elapsed = 0
			p.current.CapturedAt = time.Now()
		}
	default:
		if p.current != nil {
			p.rotateOut(p.current.Track)
			p.current = nil
			changed = true
		}
	}

	if p.current == nil {
		if track, ok := p.playlist.PopFront(); ok {
			p.current = &library.Current{CapturedAt: time.Now(), Track: track}
			p.paused = false
			changed = true
		}
	}
	if changed {
		p.publish()
	}

	if p.current == nil {
		return p.provider.Stop(ctx)
	}
	return p.provider.Play(ctx, p.current.Track)
}

// Update records a periodic position report from the provider. While a
// track is loaded every report is republished, the position changes
// continuously.
func (p *Player) Update(positionMillis int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return
	}
	p.current.Elapsed = time.Duration(positionMillis) * time.Millisecond
	p.current.CapturedAt = time.Now()
	p.publish()
}

// Serve runs the provider's event loop, feeding end-of-track and position
// reports back into the player. It blocks until the player is closed, in
// which case it returns nil, or until the loop fails.
func (p *Player) Serve() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-p.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := p.provider.Serve(ctx, p)
	select {
	case <-p.done:
		return nil
	default:
		return err
	}
}

// TrackEnd handles the provider's end-of-track event.
func (p *Player) TrackEnd(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playNext(ctx)
}

// Close tears the player down: playback is stopped, the provider released
// and the snapshot channel closed. Closing twice is a no-op.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)
	p.watch.Close()
	if err := p.provider.Close(); err != nil {
		p.log.Errorf("Error closing playback provider: %v", err)
		return err
	}
	return nil
}
