// Package session drives one companion connection: it authenticates the
// client, tracks which player the client should be watching and streams
// snapshots and patches while accepting control commands.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"syncopate/src/auth"
	"syncopate/src/protocol"
	"syncopate/src/router"
	"syncopate/src/voice"
)

// Config tunes the session's polling loops.
type Config struct {
	// WatchInterval is the membership poll interval.
	WatchInterval time.Duration
	// PlayerPollInterval is how often the pusher retries resolving a player
	// that does not exist yet.
	PlayerPollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.WatchInterval == 0 {
		c.WatchInterval = time.Second
	}
	if c.PlayerPollInterval == 0 {
		c.PlayerPollInterval = 5 * time.Second
	}
	return c
}

// A Session serves one companion connection. Up to four tasks are live at a
// time: the receive loop, the membership watcher, the state pusher and one
// goroutine per in-flight control command.
type Session struct {
	conn    *websocket.Conn
	authn   auth.Authenticator
	members voice.Source
	router  *router.Router
	cfg     Config
	log     *log.Entry

	// writeMu serializes whole frames on the outbound socket.
	writeMu sync.Mutex

	// mu guards the identity and routing target only, never socket I/O.
	mu       sync.Mutex
	identity *auth.Identity
	target   *voice.Target

	watcher taskSlot
	pusher  taskSlot
}

func New(conn *websocket.Conn, authn auth.Authenticator, members voice.Source, rt *router.Router, cfg Config) *Session {
	return &Session{
		conn:    conn,
		authn:   authn,
		members: members,
		router:  rt,
		cfg:     cfg.withDefaults(),
		log:     log.WithField("session", uuid.NewString()),
	}
}

// Run processes inbound frames until the client sends End, the connection
// drops or ctx is cancelled. The watcher and pusher tasks are always
// cancelled before Run returns.
func (s *Session) Run(ctx context.Context) {
	defer s.watcher.stop()
	defer s.pusher.stop()

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			s.log.Debugf("Receive loop ended: %v", err)
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		msg, err := protocol.ParseMessage(data)
		if err != nil {
			s.log.Warnf("Message parse error: %v", err)
			s.send(&protocol.Unexpected{ParseError: &protocol.ParseError{
				Raw:     data,
				Message: err.Error(),
			}})
			continue
		}

		switch m := msg.(type) {
		case *protocol.Authenticate:
			s.handleAuthenticate(ctx, m)
		case *protocol.AuthStatusRequest:
			s.handleAuthStatus()
		case *protocol.Control:
			// Control commands run concurrently, each one answers with
			// exactly one correlated result.
			go s.handleControl(ctx, m)
		case *protocol.End:
			s.log.Debug("Received end request")
			return
		default:
			s.log.Warnf("Received unexpected message type %T", msg)
			s.send(&protocol.Unexpected{WrongType: fmt.Sprintf("%T", msg)})
		}
	}
}

// send encodes and writes one frame. Writes are serialized so that frames
// from concurrent tasks never interleave.
func (s *Session) send(msg interface{}) {
	b, err := protocol.EncodeMessage(msg)
	if err != nil {
		s.log.Errorf("Error encoding %T message: %v", msg, err)
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		s.log.Warnf("Send error: %v", err)
	}
}

func (s *Session) handleAuthenticate(ctx context.Context, m *protocol.Authenticate) {
	identity, refresh, err := s.authn.Exchange(ctx, m.Credential)
	if err != nil {
		s.log.Warnf("Authentication error: %v", err)
		s.send(&protocol.AuthResult{Error: "authentication failed"})
		return
	}

	s.mu.Lock()
	s.identity = &identity
	s.mu.Unlock()
	s.send(&protocol.AuthResult{
		OK:                true,
		User:              &protocol.UserInfo{ID: identity.ID, Name: identity.Name, Avatar: identity.Avatar},
		RefreshCredential: refresh,
	})
	s.log.WithField("user", identity.ID).Info("Authenticated")

	// Re-authentication restarts membership tracking from scratch.
	wctx, cancel := context.WithCancel(ctx)
	if s.watcher.replace(cancel) {
		s.pusher.stop()
		s.mu.Lock()
		s.target = nil
		s.mu.Unlock()
		s.send(&protocol.MembershipState{})
	}
	go s.runWatcher(wctx, identity.ID)
}

func (s *Session) handleAuthStatus() {
	s.mu.Lock()
	authenticated := s.identity != nil
	s.mu.Unlock()
	s.send(&protocol.AuthStatus{Authenticated: authenticated})
}

func (s *Session) handleControl(ctx context.Context, m *protocol.Control) {
	result := &protocol.ControlResult{ID: m.ID, Command: m.Command, OK: true}

	s.mu.Lock()
	target := s.target
	s.mu.Unlock()
	if target == nil {
		result.OK = false
		result.Error = "no player to control"
		s.send(result)
		return
	}

	if err := s.dispatchControl(ctx, target, m.Command); err != nil {
		s.log.WithField("guild", target.Guild).Warnf("Control error: %v", err)
		result.OK = false
		result.Error = err.Error()
	}
	s.send(result)
}

func (s *Session) dispatchControl(ctx context.Context, target *voice.Target, cmd protocol.ControlCommand) error {
	switch cmd.Action {
	case protocol.ActionResume, protocol.ActionPause:
		// Companion clients expect toggle semantics for both directions.
		return s.router.Request(ctx, target.Guild, router.PauseResume{})
	case protocol.ActionSkip:
		return s.router.Request(ctx, target.Guild, router.Skip{N: cmd.Count})
	case protocol.ActionBackSkip:
		return s.router.Request(ctx, target.Guild, router.BackSkip{N: cmd.Count})
	case protocol.ActionSetPosition:
		pos := time.Duration(cmd.PositionMillis) * time.Millisecond
		return s.router.Request(ctx, target.Guild, router.Jump{Pos: pos})
	case protocol.ActionSetLoopMode:
		return s.router.Request(ctx, target.Guild, router.SetLoopMode{Mode: loopModeFromWire(cmd.Mode)})
	case protocol.ActionEnqueue:
		tracks, err := s.router.Search(ctx, target.Guild, cmd.Query)
		if err != nil {
			return err
		}
		if len(tracks) == 0 {
			return fmt.Errorf("no results for %q", cmd.Query)
		}
		return s.router.Request(ctx, target.Guild, router.Enqueue{Tracks: tracks[:1]})
	case protocol.ActionLeave:
		return s.router.Leave(ctx, target.Guild)
	case protocol.ActionJoin:
		return s.router.Join(ctx, target.Guild, target.ChannelID)
	default:
		return fmt.Errorf("unknown control action %d", cmd.Action)
	}
}

// sleep waits for the duration. It returns false when ctx ended first.
func (s *Session) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

// A taskSlot holds the cancel handle of at most one background task.
// Replacing the task always cancels its predecessor first, under the slot's
// own lock, so two tasks of the same kind never run concurrently.
type taskSlot struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

// replace installs a new cancel handle and reports whether a previous task
// was cancelled.
func (t *taskSlot) replace(cancel context.CancelFunc) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	had := t.cancel != nil
	if had {
		t.cancel()
	}
	t.cancel = cancel
	return had
}

func (t *taskSlot) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}
