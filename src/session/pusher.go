package session

import (
	"context"
	"errors"
	"time"

	"syncopate/src/library"
	"syncopate/src/player"
	"syncopate/src/protocol"
	"syncopate/src/util"
	"syncopate/src/voice"
)

// runPusher streams the state of the player behind one routing target: a
// full snapshot once the player is resolved, minimal patches afterwards.
func (s *Session) runPusher(ctx context.Context, target voice.Target) {
	log := s.log.WithField("guild", target.Guild).WithField("channel", target.ChannelID)
	log.Debug("Starting state pusher")
	defer log.Debug("State pusher ended")

	// Tell the client right away when there is nothing to watch yet.
	if s.resolvePlayer(target) == nil {
		s.send(&protocol.PlayerStateMessage{Kind: protocol.StateEmpty})
	}

outer:
	for {
		var p *player.Player
		for {
			if p = s.resolvePlayer(target); p != nil {
				break
			}
			if !s.sleep(ctx, s.cfg.PlayerPollInterval) {
				return
			}
		}
		log.Debug("Resolved player")

		rx := p.Subscribe()
		last := wireState(rx.Latest(), time.Now())
		s.send(&protocol.PlayerStateMessage{Kind: protocol.StateFull, Full: last})

		for {
			if err := rx.Changed(ctx); err != nil {
				if errors.Is(err, util.ErrWatchClosed) {
					// The player was torn down. Await a new one.
					s.send(&protocol.PlayerStateMessage{Kind: protocol.StateEmpty})
					continue outer
				}
				return
			}

			next := wireState(rx.Latest(), time.Now())
			if next.Equal(*last) {
				continue
			}
			patch, err := protocol.DiffState(last, next)
			if err != nil {
				log.Errorf("Error generating patch, sending full snapshot: %v", err)
				last = next
				s.send(&protocol.PlayerStateMessage{Kind: protocol.StateFull, Full: next})
				continue
			}
			last = next
			s.send(&protocol.PlayerStateMessage{Kind: protocol.StatePatch, Patch: patch})
		}
	}
}

// resolvePlayer returns the player the target should observe, or nil if it
// does not exist or sits in a different channel.
func (s *Session) resolvePlayer(target voice.Target) *player.Player {
	p, err := s.router.Lookup(target.Guild)
	if err != nil {
		return nil
	}
	if p.Channel() != target.ChannelID {
		return nil
	}
	return p
}

// wireState materializes a snapshot for the wire. The current track's
// position is derived from its capture pair as of now.
func wireState(state player.State, now time.Time) *protocol.PlayerState {
	var current *protocol.Track
	if state.Current != nil {
		t := wireTrack(state.Current.Track)
		t.PositionMillis = state.Current.Position(now).Milliseconds()
		current = &t
	}
	return &protocol.PlayerState{
		Owner: protocol.OwnerInfo{
			ID:     state.Owner.ID,
			Name:   state.Owner.Name,
			Avatar: state.Owner.Avatar,
		},
		Paused:  state.Paused,
		Mode:    loopModeToWire(state.Mode),
		Current: current,
		History: wireTracks(state.History),
		Queue:   wireTracks(state.Playlist),
	}
}

func wireTrack(track library.Track) protocol.Track {
	return protocol.Track{
		URI:            track.URI,
		Title:          track.Title,
		DurationMillis: track.Duration.Milliseconds(),
		PositionMillis: track.Position.Milliseconds(),
	}
}

func wireTracks(tracks []library.Track) []protocol.Track {
	out := make([]protocol.Track, len(tracks))
	for i, track := range tracks {
		out[i] = wireTrack(track)
	}
	return out
}

func loopModeToWire(mode player.LoopMode) protocol.PlayMode {
	switch mode {
	case player.LoopAll:
		return protocol.PlayModeLoopAll
	case player.LoopOne:
		return protocol.PlayModeLoopOne
	default:
		return protocol.PlayModeNormal
	}
}

func loopModeFromWire(mode protocol.PlayMode) player.LoopMode {
	switch mode {
	case protocol.PlayModeLoopAll:
		return player.LoopAll
	case protocol.PlayModeLoopOne:
		return player.LoopOne
	default:
		return player.LoopOff
	}
}
