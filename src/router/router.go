// Package router maps routing keys (guilds) to their player and dispatches
// control commands to them.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"syncopate/src/library"
	"syncopate/src/player"
)

var (
	// ErrPlayerNotFound is returned when no player exists for a routing key.
	ErrPlayerNotFound = errors.New("no player for routing key")

	// ErrAlreadyInChannel is returned by Join when the playback unit already
	// has a player.
	ErrAlreadyInChannel = errors.New("already in a voice channel")

	// ErrNotInChannel is returned by Leave when there is nothing to leave.
	ErrNotInChannel = errors.New("not in a voice channel")
)

// A ProviderFactory connects the playback provider for a player that is
// about to be created.
type ProviderFactory func(ctx context.Context, guild, channel string) (player.Provider, error)

// Router owns the routing key to player mapping. Lookups are safe while
// players join and leave concurrently.
type Router struct {
	owner   player.Owner
	factory ProviderFactory

	mu      sync.RWMutex
	players map[string]*player.Player
}

func New(owner player.Owner, factory ProviderFactory) *Router {
	return &Router{
		owner:   owner,
		factory: factory,
		players: map[string]*player.Player{},
	}
}

// Lookup returns the player for a routing key.
func (r *Router) Lookup(guild string) (*player.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.players[guild]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrPlayerNotFound, guild)
}

// Request executes one command against the player of the given routing key.
// A fatal provider error destroys the player before the error is returned.
func (r *Router) Request(ctx context.Context, guild string, cmd Command) error {
	p, err := r.Lookup(guild)
	if err != nil {
		return err
	}
	if err := cmd.apply(ctx, p); err != nil {
		if player.IsFatal(err) {
			log.WithField("guild", guild).Errorf("Fatal provider error, destroying player: %v", err)
			r.removePlayer(guild, p)
		}
		return err
	}
	return nil
}

// Search resolves a query via the playback provider of the routing key's
// player. No state is mutated.
func (r *Router) Search(ctx context.Context, guild, query string) ([]library.Track, error) {
	p, err := r.Lookup(guild)
	if err != nil {
		return nil, err
	}
	return p.Search(ctx, query)
}

// Join creates a player for the routing key, bound to the given channel.
func (r *Router) Join(ctx context.Context, guild, channel string) error {
	r.mu.RLock()
	_, exists := r.players[guild]
	r.mu.RUnlock()
	if exists {
		return ErrAlreadyInChannel
	}

	// The provider connect happens outside the lock, it may block on I/O.
	provider, err := r.factory(ctx, guild, channel)
	if err != nil {
		return fmt.Errorf("connecting provider for %q: %w", guild, err)
	}

	r.mu.Lock()
	if _, exists := r.players[guild]; exists {
		r.mu.Unlock()
		provider.Close()
		return ErrAlreadyInChannel
	}
	p := player.New(channel, r.owner, provider)
	r.players[guild] = p
	r.mu.Unlock()

	// The provider's event loop drives queue progression and position
	// reports. A player whose loop died can no longer make progress.
	go func() {
		if err := p.Serve(); err != nil {
			log.WithField("guild", guild).Errorf("Player event loop failed, destroying player: %v", err)
			r.removePlayer(guild, p)
		}
	}()

	log.WithField("guild", guild).WithField("channel", channel).Info("Player joined")
	return nil
}

// Leave destroys the routing key's player. Queue and history are discarded.
func (r *Router) Leave(ctx context.Context, guild string) error {
	r.mu.Lock()
	p, ok := r.players[guild]
	if !ok {
		r.mu.Unlock()
		return ErrNotInChannel
	}
	delete(r.players, guild)
	r.mu.Unlock()

	log.WithField("guild", guild).Info("Player left")
	return p.Close()
}

func (r *Router) removePlayer(guild string, p *player.Player) {
	r.mu.Lock()
	if current, ok := r.players[guild]; ok && current == p {
		delete(r.players, guild)
	}
	r.mu.Unlock()
	p.Close()
}

// Close destroys all players.
func (r *Router) Close() {
	r.mu.Lock()
	players := r.players
	r.players = map[string]*player.Player{}
	r.mu.Unlock()
	for _, p := range players {
		p.Close()
	}
}
