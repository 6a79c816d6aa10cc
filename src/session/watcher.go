package session

import (
	"context"

	"syncopate/src/protocol"
	"syncopate/src/voice"
)

// runWatcher polls the user's voice channel membership. On every change it
// notifies the client and rebinds the state pusher to the new target.
func (s *Session) runWatcher(ctx context.Context, userID string) {
	s.log.Debug("Starting membership watcher")
	defer s.log.Debug("Membership watcher ended")

	var last *voice.Target
	for {
		target, err := s.members.VoiceChannel(ctx, userID)
		// A replaced watcher must not touch the pusher slot, its successor
		// owns it now.
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Warnf("Membership lookup error: %v", err)
			if !s.sleep(ctx, s.cfg.WatchInterval) {
				return
			}
			continue
		}

		if targetsEqual(target, last) {
			if !s.sleep(ctx, s.cfg.WatchInterval) {
				return
			}
			continue
		}

		// The membership changed. Whatever the pusher was bound to is no
		// longer what the client should be watching.
		s.pusher.stop()
		last = target
		s.mu.Lock()
		s.target = target
		s.mu.Unlock()
		s.send(&protocol.MembershipState{Target: wireTarget(target)})

		if target != nil {
			pctx, cancel := context.WithCancel(ctx)
			s.pusher.replace(cancel)
			go s.runPusher(pctx, *target)
		}

		if !s.sleep(ctx, s.cfg.WatchInterval) {
			return
		}
	}
}

// targetsEqual compares routing identity. The display name does not affect
// which player is watched.
func targetsEqual(a, b *voice.Target) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Guild == b.Guild && a.ChannelID == b.ChannelID
}

func wireTarget(target *voice.Target) *protocol.MembershipTarget {
	if target == nil {
		return nil
	}
	return &protocol.MembershipTarget{
		Guild:       target.Guild,
		ChannelID:   target.ChannelID,
		ChannelName: target.ChannelName,
	}
}
