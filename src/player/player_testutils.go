package player

import (
	"context"
	"fmt"
	"sync"
	"time"

	"syncopate/src/library"
)

// StubProvider is a Provider for use in tests. It records the calls made to
// it and can be instructed to fail.
type StubProvider struct {
	mu    sync.Mutex
	calls []string

	// Err, when set, is returned from every playback call.
	Err error
	// SearchResults is returned from Search.
	SearchResults []library.Track
	// ServeErr, when set, makes Serve fail immediately.
	ServeErr error

	sink EventSink
}

func (s *StubProvider) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

// Calls returns a copy of the calls recorded so far.
func (s *StubProvider) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	calls := make([]string, len(s.calls))
	copy(calls, s.calls)
	return calls
}

// Reset discards the recorded calls.
func (s *StubProvider) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

func (s *StubProvider) Play(ctx context.Context, track library.Track) error {
	s.record("play " + track.URI)
	return s.Err
}

func (s *StubProvider) Stop(ctx context.Context) error {
	s.record("stop")
	return s.Err
}

func (s *StubProvider) Pause(ctx context.Context) error {
	s.record("pause")
	return s.Err
}

func (s *StubProvider) Resume(ctx context.Context) error {
	s.record("resume")
	return s.Err
}

func (s *StubProvider) Seek(ctx context.Context, pos time.Duration) error {
	s.record(fmt.Sprintf("seek %v", pos))
	return s.Err
}

func (s *StubProvider) Search(ctx context.Context, query string) ([]library.Track, error) {
	s.record("search " + query)
	if s.Err != nil {
		return nil, s.Err
	}
	return s.SearchResults, nil
}

func (s *StubProvider) Serve(ctx context.Context, sink EventSink) error {
	if s.ServeErr != nil {
		return s.ServeErr
	}
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
	<-ctx.Done()
	return nil
}

// Sink returns the event sink passed to Serve, or nil while the event loop
// has not started yet. Tests use it to simulate provider events.
func (s *StubProvider) Sink() EventSink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sink
}

func (s *StubProvider) Close() error {
	s.record("close")
	return nil
}
