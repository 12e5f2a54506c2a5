// Package activity posts watch events to an external achievement/activity
// tracker. Delivery is best effort: failures are logged and swallowed, and
// never block or roll back a watch-state write.
package activity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

// Logger sends watch events to a configured HTTP endpoint.
type Logger struct {
	endpoint string
	httpc    *http.Client
	now      func() time.Time
}

// NewLogger creates an activity logger. An empty endpoint disables it.
func NewLogger(endpoint string, httpc *http.Client) *Logger {
	if httpc == nil {
		httpc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Logger{endpoint: strings.TrimSpace(endpoint), httpc: httpc, now: time.Now}
}

// Enabled reports whether an endpoint is configured.
func (l *Logger) Enabled() bool {
	return l != nil && l.endpoint != ""
}

type watchEvent struct {
	UserID    string    `json:"userId"`
	IsRewatch bool      `json:"isRewatch"`
	AirDate   string    `json:"airDate,omitempty"`
	WatchedAt time.Time `json:"watchedAt"`
}

// LogWatch reports one watch event. Safe to call from any goroutine; errors
// are swallowed after a short retry.
func (l *Logger) LogWatch(userID string, isRewatch bool, airDate string) {
	if !l.Enabled() {
		return
	}

	payload, err := json.Marshal(watchEvent{
		UserID:    userID,
		IsRewatch: isRewatch,
		AirDate:   airDate,
		WatchedAt: l.now().UTC(),
	})
	if err != nil {
		log.Printf("[activity] encode watch event: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	err = retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(payload))
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := l.httpc.Do(req)
			if err != nil {
				return err
			}
			resp.Body.Close()
			if resp.StatusCode >= 400 {
				return retry.Unrecoverable(fmt.Errorf("activity endpoint returned %s", resp.Status))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		log.Printf("[activity] watch event for user %s dropped: %v", userID, err)
	}
}
