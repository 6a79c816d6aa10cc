// Package mpd implements the playback provider boundary on top of a Music
// Player Daemon instance.
package mpd

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	log "github.com/sirupsen/logrus"

	"syncopate/src/library"
	"syncopate/src/player"
)

// Provider drives one MPD server. It satisfies player.Provider.
type Provider struct {
	network, address string
	passwd           string

	mu     sync.Mutex
	client *mpd.Client
	closed bool

	// playing distinguishes a track that ran out from a deliberate stop
	// when the player subsystem reports a "stop" state.
	playing bool
}

// Connect establishes the MPD connection.
func Connect(network, address string, password *string) (*Provider, error) {
	var passwd string
	if password != nil {
		passwd = *password
	}
	prov := &Provider{network: network, address: address, passwd: passwd}
	client, err := mpd.DialAuthenticated(network, address, passwd)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to MPD at %s: %v", address, err)
	}
	prov.client = client
	return prov, nil
}

// withMpd runs fn against the MPD connection, reconnecting once when the
// connection turns out to be dead. A failed reconnect is fatal.
func (pr *Provider) withMpd(ctx context.Context, fn func(mpdc *mpd.Client) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pr.mu.Lock()
	defer pr.mu.Unlock()
	if pr.closed {
		return player.ErrProviderGone
	}

	if err := pr.client.Ping(); err != nil {
		log.WithField("mpd", pr.address).Warnf("Connection lost, reconnecting: %v", err)
		client, err := mpd.DialAuthenticated(pr.network, pr.address, pr.passwd)
		if err != nil {
			return fmt.Errorf("reconnecting to MPD at %s: %w", pr.address, player.ErrProviderGone)
		}
		pr.client.Close()
		pr.client = client
	}
	return fn(pr.client)
}

func (pr *Provider) Play(ctx context.Context, track library.Track) error {
	return pr.withMpd(ctx, func(mpdc *mpd.Client) error {
		if err := mpdc.Clear(); err != nil {
			return err
		}
		if err := mpdc.Add(track.URI); err != nil {
			return err
		}
		if err := mpdc.Play(0); err != nil {
			return err
		}
		pr.playing = true
		return nil
	})
}

func (pr *Provider) Stop(ctx context.Context) error {
	return pr.withMpd(ctx, func(mpdc *mpd.Client) error {
		pr.playing = false
		return mpdc.Stop()
	})
}

func (pr *Provider) Pause(ctx context.Context) error {
	return pr.withMpd(ctx, func(mpdc *mpd.Client) error {
		return mpdc.Pause(true)
	})
}

func (pr *Provider) Resume(ctx context.Context) error {
	return pr.withMpd(ctx, func(mpdc *mpd.Client) error {
		return mpdc.Pause(false)
	})
}

func (pr *Provider) Seek(ctx context.Context, pos time.Duration) error {
	return pr.withMpd(ctx, func(mpdc *mpd.Client) error {
		return mpdc.SeekCur(pos, false)
	})
}

func (pr *Provider) Search(ctx context.Context, query string) ([]library.Track, error) {
	var tracks []library.Track
	err := pr.withMpd(ctx, func(mpdc *mpd.Client) error {
		songs, err := mpdc.Search("any", query)
		if err != nil {
			return err
		}
		tracks = make([]library.Track, 0, len(songs))
		for _, song := range songs {
			if song["file"] == "" {
				continue
			}
			tracks = append(tracks, trackFromAttrs(song))
		}
		return nil
	})
	return tracks, err
}

func trackFromAttrs(song mpd.Attrs) library.Track {
	track := library.Track{
		URI:   song["file"],
		Title: song["Title"],
	}
	if track.Title == "" {
		track.Title = track.URI
	}
	if durStr := song["duration"]; durStr != "" {
		if seconds, err := strconv.ParseFloat(durStr, 64); err == nil {
			track.Duration = time.Duration(seconds * float64(time.Second))
		}
	} else if timeStr := song["Time"]; timeStr != "" {
		if seconds, err := strconv.ParseInt(timeStr, 10, 64); err == nil {
			track.Duration = time.Duration(seconds) * time.Second
		}
	}
	return track
}

// Serve watches the MPD player subsystem over a dedicated idle connection
// and reports track ends and playback positions to sink until ctx ends.
func (pr *Provider) Serve(ctx context.Context, sink player.EventSink) error {
	w, err := mpd.NewWatcher(pr.network, pr.address, pr.passwd, "player")
	if err != nil {
		return fmt.Errorf("watching MPD at %s: %w", pr.address, player.ErrProviderGone)
	}
	defer w.Close()
	go func() {
		<-ctx.Done()
		w.Close()
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-w.Event:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("MPD watcher at %s died: %w", pr.address, player.ErrProviderGone)
			}
			if err := pr.reportPlayerEvent(ctx, sink); err != nil {
				return err
			}
		case err := <-w.Error:
			log.WithField("mpd", pr.address).Warnf("Watcher error: %v", err)
		case <-ticker.C:
			pr.reportPosition(ctx, sink)
		}
	}
}

// reportPlayerEvent inspects the player state after a subsystem event. A
// "stop" state while a track was loaded means the track ran out.
func (pr *Provider) reportPlayerEvent(ctx context.Context, sink player.EventSink) error {
	status, err := pr.status(ctx)
	if err != nil {
		if player.IsFatal(err) {
			return err
		}
		if ctx.Err() == nil {
			log.WithField("mpd", pr.address).Warnf("Status lookup error: %v", err)
		}
		return nil
	}

	pr.mu.Lock()
	ended := status["state"] == "stop" && pr.playing
	if ended {
		pr.playing = false
	}
	pr.mu.Unlock()
	if ended {
		return sink.TrackEnd(ctx)
	}
	return nil
}

func (pr *Provider) reportPosition(ctx context.Context, sink player.EventSink) {
	status, err := pr.status(ctx)
	if err != nil || status["state"] != "play" {
		return
	}
	if elapsed, err := strconv.ParseFloat(status["elapsed"], 64); err == nil {
		sink.Update(int64(elapsed * 1000))
	}
}

func (pr *Provider) status(ctx context.Context) (mpd.Attrs, error) {
	var status mpd.Attrs
	err := pr.withMpd(ctx, func(mpdc *mpd.Client) error {
		var err error
		status, err = mpdc.Status()
		return err
	})
	return status, err
}

// Close stops playback and releases the connection.
func (pr *Provider) Close() error {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	if pr.closed {
		return nil
	}
	pr.closed = true
	if err := pr.client.Stop(); err != nil {
		log.WithField("mpd", pr.address).Warnf("Error stopping playback on close: %v", err)
	}
	return pr.client.Close()
}
