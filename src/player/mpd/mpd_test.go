package mpd

import (
	"testing"
	"time"

	"github.com/fhs/gompd/v2/mpd"
)

func TestTrackFromAttrs(t *testing.T) {
	track := trackFromAttrs(mpd.Attrs{
		"file":     "music/aaa.flac",
		"Title":    "Aaa",
		"duration": "183.5",
	})
	if track.URI != "music/aaa.flac" || track.Title != "Aaa" {
		t.Fatalf("unexpected track: %#v", track)
	}
	if track.Duration != 183500*time.Millisecond {
		t.Fatalf("unexpected duration: %v", track.Duration)
	}
}

func TestTrackFromAttrsFallsBackToTimeAndURI(t *testing.T) {
	track := trackFromAttrs(mpd.Attrs{
		"file": "music/untagged.flac",
		"Time": "42",
	})
	if track.Title != "music/untagged.flac" {
		t.Fatalf("expected the URI as title, got %q", track.Title)
	}
	if track.Duration != 42*time.Second {
		t.Fatalf("unexpected duration: %v", track.Duration)
	}
}
