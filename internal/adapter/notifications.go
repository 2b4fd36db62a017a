// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/models"
	"github.com/gorilla/websocket"
)

// NotificationListener maintains a websocket connection to the record
// service and delivers zone-change notifications to subscribed clients.
// The connection is re-established with backoff after any failure; missed
// notifications are harmless because every sync cycle starts from the
// persisted change token.
type NotificationListener struct {
	wsURL  string
	token  string
	logger *logger.Logger

	notifications chan models.ZoneNotification

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewNotificationListener builds a listener for the service at cfg.BaseURL.
// The websocket endpoint derives from the base URL with the scheme swapped
// to ws/wss.
func NewNotificationListener(cfg RemoteConfig, log *logger.Logger) (*NotificationListener, error) {
	baseURL, err := normalizeBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/notifications"

	token, err := mintBearerToken(cfg.SigningKey, cfg.ClientID)
	if err != nil {
		return nil, err
	}

	return &NotificationListener{
		wsURL:         u.String(),
		token:         token,
		logger:        log,
		notifications: make(chan models.ZoneNotification, 8),
	}, nil
}

// Notifications returns the channel zone notifications arrive on. The
// channel is closed when the listener stops.
func (l *NotificationListener) Notifications() <-chan models.ZoneNotification {
	return l.notifications
}

// Start launches the connection loop. Calling Start twice is a no-op.
func (l *NotificationListener) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})

	go l.run(ctx)
}

// Stop tears the connection down and closes the notification channel.
func (l *NotificationListener) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel = nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (l *NotificationListener) run(ctx context.Context) {
	defer close(l.done)
	defer close(l.notifications)

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := l.dial(ctx)
		if err != nil {
			l.logger.Debug().Err(err).Str("url", l.wsURL).Msg("notification dial failed")
			if !sleepCtx(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}

		l.logger.Info().Str("url", l.wsURL).Msg("notification channel connected")
		backoff = time.Second
		l.readLoop(ctx, conn)
	}
}

func (l *NotificationListener) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+l.token)

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, l.wsURL, header)
	return conn, err
}

func (l *NotificationListener) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				l.logger.Debug().Err(err).Msg("notification channel closed, reconnecting")
			}
			return
		}

		var note models.ZoneNotification
		if err = json.Unmarshal(payload, &note); err != nil {
			l.logger.Warn().Err(err).Msg("discarding malformed zone notification")
			continue
		}

		select {
		case l.notifications <- note:
		default:
			// A pending notification already guarantees a sync run.
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
