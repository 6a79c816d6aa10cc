package router

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"syncopate/src/library"
	"syncopate/src/player"
)

func waitForSink(t *testing.T, provider *player.StubProvider) player.EventSink {
	t.Helper()
	for i := 0; i < 100; i++ {
		if sink := provider.Sink(); sink != nil {
			return sink
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("the provider event loop did not start")
	return nil
}

func newTestRouter() (*Router, *player.StubProvider) {
	provider := &player.StubProvider{}
	factory := func(ctx context.Context, guild, channel string) (player.Provider, error) {
		return provider, nil
	}
	return New(player.Owner{ID: "1", Name: "bot"}, factory), provider
}

func TestRequestUnknownKey(t *testing.T) {
	r, _ := newTestRouter()
	err := r.Request(context.Background(), "nowhere", PauseResume{})
	if !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}
}

func TestJoinLeaveLifecycle(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRouter()

	if err := r.Join(ctx, "guild", "channel"); err != nil {
		t.Fatal(err)
	}
	if err := r.Join(ctx, "guild", "other"); !errors.Is(err, ErrAlreadyInChannel) {
		t.Fatalf("expected ErrAlreadyInChannel, got %v", err)
	}

	p, err := r.Lookup("guild")
	if err != nil {
		t.Fatal(err)
	}
	if p.Channel() != "channel" {
		t.Fatalf("unexpected channel: %q", p.Channel())
	}

	if err := r.Leave(ctx, "guild"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Lookup("guild"); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound after leave, got %v", err)
	}
	if err := r.Leave(ctx, "guild"); !errors.Is(err, ErrNotInChannel) {
		t.Fatalf("expected ErrNotInChannel, got %v", err)
	}
}

func TestRequestDispatchesCommands(t *testing.T) {
	ctx := context.Background()
	r, provider := newTestRouter()
	if err := r.Join(ctx, "guild", "channel"); err != nil {
		t.Fatal(err)
	}

	track := library.Track{URI: "track://a", Title: "A"}
	if err := r.Request(ctx, "guild", Enqueue{Tracks: []library.Track{track}}); err != nil {
		t.Fatal(err)
	}
	if err := r.Request(ctx, "guild", Skip{N: 1}); err != nil {
		t.Fatal(err)
	}
	if err := r.Request(ctx, "guild", SetLoopMode{Mode: player.LoopAll}); err != nil {
		t.Fatal(err)
	}
	if err := r.Request(ctx, "guild", ClearQueue{}); err != nil {
		t.Fatal(err)
	}

	calls := provider.Calls()
	if len(calls) != 2 || calls[0] != "play track://a" || calls[1] != "stop" {
		t.Fatalf("unexpected provider calls: %v", calls)
	}
}

func TestProviderEventsAdvanceQueue(t *testing.T) {
	ctx := context.Background()
	r, provider := newTestRouter()
	if err := r.Join(ctx, "guild", "channel"); err != nil {
		t.Fatal(err)
	}
	sink := waitForSink(t, provider)

	tracks := []library.Track{{URI: "track://a"}, {URI: "track://b"}}
	if err := r.Request(ctx, "guild", Enqueue{Tracks: tracks}); err != nil {
		t.Fatal(err)
	}
	if err := sink.TrackEnd(ctx); err != nil {
		t.Fatal(err)
	}

	calls := provider.Calls()
	if len(calls) != 2 || calls[0] != "play track://a" || calls[1] != "play track://b" {
		t.Fatalf("unexpected provider calls: %v", calls)
	}
	p, _ := r.Lookup("guild")
	state := p.Subscribe().Latest()
	if state.Current == nil || state.Current.Track.URI != "track://b" {
		t.Fatalf("expected the next track to be loaded, got %#v", state.Current)
	}
}

func TestProviderPositionReports(t *testing.T) {
	ctx := context.Background()
	r, provider := newTestRouter()
	if err := r.Join(ctx, "guild", "channel"); err != nil {
		t.Fatal(err)
	}
	sink := waitForSink(t, provider)

	if err := r.Request(ctx, "guild", Enqueue{Tracks: []library.Track{{URI: "track://a"}}}); err != nil {
		t.Fatal(err)
	}
	sink.Update(1500)

	p, _ := r.Lookup("guild")
	state := p.Subscribe().Latest()
	if state.Current == nil || state.Current.Elapsed != 1500*time.Millisecond {
		t.Fatalf("expected the reported position, got %#v", state.Current)
	}
}

func TestEventLoopFailureDestroysPlayer(t *testing.T) {
	ctx := context.Background()
	r, provider := newTestRouter()
	provider.ServeErr = fmt.Errorf("idle connection lost: %w", player.ErrProviderGone)
	if err := r.Join(ctx, "guild", "channel"); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 100; i++ {
		if _, err := r.Lookup("guild"); errors.Is(err, ErrPlayerNotFound) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("a dead event loop must destroy the player")
}

func TestSearchDoesNotMutatePlayerState(t *testing.T) {
	ctx := context.Background()
	r, provider := newTestRouter()
	if err := r.Join(ctx, "guild", "channel"); err != nil {
		t.Fatal(err)
	}
	provider.SearchResults = []library.Track{{URI: "track://hit", Title: "Hit"}}

	p, _ := r.Lookup("guild")
	before := p.Subscribe().Latest()

	tracks, err := r.Search(ctx, "guild", "some song")
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 || tracks[0].URI != "track://hit" {
		t.Fatalf("unexpected search results: %v", tracks)
	}
	if after := p.Subscribe().Latest(); !after.Equal(before) {
		t.Fatal("search must not mutate player state")
	}
}

func TestFatalErrorDestroysPlayer(t *testing.T) {
	ctx := context.Background()
	r, provider := newTestRouter()
	if err := r.Join(ctx, "guild", "channel"); err != nil {
		t.Fatal(err)
	}

	provider.Err = fmt.Errorf("websocket: %w", player.ErrProviderGone)
	err := r.Request(ctx, "guild", Enqueue{Tracks: []library.Track{{URI: "track://a"}}})
	if !player.IsFatal(err) {
		t.Fatalf("expected a fatal error, got %v", err)
	}
	if _, err := r.Lookup("guild"); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatal("a fatal provider error must destroy the player")
	}
}

func TestNonFatalErrorKeepsPlayer(t *testing.T) {
	ctx := context.Background()
	r, provider := newTestRouter()
	if err := r.Join(ctx, "guild", "channel"); err != nil {
		t.Fatal(err)
	}

	provider.Err = errors.New("isolated failure")
	if err := r.Request(ctx, "guild", PauseResume{}); err == nil {
		t.Fatal("expected an error")
	}
	if _, err := r.Lookup("guild"); err != nil {
		t.Fatalf("a non-fatal error must not destroy the player: %v", err)
	}
}
