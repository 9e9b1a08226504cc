package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chainguard-dev/clog"
	"github.com/gorilla/websocket"
)

// Listener receives Jira bug events from a WebSocket feed.
type Listener struct {
	url    string
	dialer *websocket.Dialer
}

// NewListener returns a listener for the feed at wsURL.
func NewListener(wsURL string) (*Listener, error) {
	if wsURL == "" {
		return nil, errors.New("JIRA_WS_URL must be provided")
	}
	return &Listener{url: wsURL, dialer: websocket.DefaultDialer}, nil
}

// Listen connects to the feed and calls onBug for every issue received until
// ctx is cancelled or the connection drops. Messages that are not JSON objects
// are skipped; errors from onBug are logged and do not stop the listener.
func (l *Listener) Listen(ctx context.Context, onBug func(context.Context, Issue) error) error {
	log := clog.FromContext(ctx).With("url", l.url)

	conn, _, err := l.dialer.DialContext(ctx, l.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", l.url, err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	log.Info("listening for Jira events")
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read message: %w", err)
		}

		issue, ok := parseEvent(message)
		if !ok {
			log.Debugf("skipping malformed message: %.200s", message)
			continue
		}
		if err := onBug(ctx, issue); err != nil {
			log.Errorf("failed to handle %s: %v", issue.Key, err)
		}
	}
}

// parseEvent extracts the issue from an event message. The issue is the
// "issue" member when present and non-empty, otherwise the whole object.
func parseEvent(message []byte) (Issue, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(message, &obj); err != nil || len(obj) == 0 {
		return Issue{}, false
	}

	raw := json.RawMessage(message)
	if nested, ok := obj["issue"]; ok {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(nested, &inner); err == nil && len(inner) > 0 {
			raw = nested
		}
	}

	var issue Issue
	if err := json.Unmarshal(raw, &issue); err != nil {
		return Issue{}, false
	}
	return issue, true
}
