// Package voice reports which voice channel a user currently occupies. The
// membership data lives in an external system that offers no subscription
// primitive, so consumers poll it.
package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Target identifies the channel a user is in, and with it the routing key
// of the player the user should be watching.
type Target struct {
	Guild       string `json:"guild"`
	ChannelID   string `json:"channel_id"`
	ChannelName string `json:"channel_name"`
}

// A Source looks up the current voice channel of a user. A nil target means
// the user is in no channel.
type Source interface {
	VoiceChannel(ctx context.Context, userID string) (*Target, error)
}

// HTTPSource queries membership over HTTP.
// GET {BaseURL}/users/{id}/voice answers 200 with a Target, or 204 when the
// user is in no channel.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
}

func (s *HTTPSource) VoiceChannel(ctx context.Context, userID string) (*Target, error) {
	endpoint := fmt.Sprintf("%s/users/%s/voice", s.BaseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("membership lookup: %w", err)
	}
	defer res.Body.Close()
	switch res.StatusCode {
	case http.StatusOK:
		var target Target
		if err := json.NewDecoder(res.Body).Decode(&target); err != nil {
			return nil, fmt.Errorf("membership lookup: %w", err)
		}
		return &target, nil
	case http.StatusNoContent:
		return nil, nil
	default:
		return nil, fmt.Errorf("membership lookup: unexpected status %s", res.Status)
	}
}
