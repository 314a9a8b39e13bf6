package events

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/blackmichael/syndicator/internal/domain"
)

const (
	cursorStreamName   = "events"
	cursorSaveInterval = 5 * time.Second
	reconnectDelay     = 5 * time.Second
)

// PostSyndicator syndicates a single post.
type PostSyndicator interface {
	SyndicatePost(ctx context.Context, url string, force bool) (*domain.Outcome, error)
}

// Subscriber connects to a WebSocket stream of publish events and
// syndicates every post that is published or updated.
type Subscriber struct {
	url        string
	syndicator PostSyndicator
	cursors    domain.CursorRepository
	logger     *slog.Logger

	reconnectDelay time.Duration
}

// NewSubscriber creates a new event subscriber.
func NewSubscriber(
	streamURL string,
	syndicator PostSyndicator,
	cursors domain.CursorRepository,
	logger *slog.Logger,
) *Subscriber {
	return &Subscriber{
		url:            streamURL,
		syndicator:     syndicator,
		cursors:        cursors,
		logger:         logger,
		reconnectDelay: reconnectDelay,
	}
}

// Start connects to the stream and processes events until the context is
// cancelled. It automatically reconnects on transient errors.
func (s *Subscriber) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := s.subscribe(ctx); err != nil {
				s.logger.Error("event stream connection error, reconnecting", "error", err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(s.reconnectDelay):
				}
			}
		}
	}
}

func (s *Subscriber) buildURL(cursor int64) (string, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return "", fmt.Errorf("parse stream url: %w", err)
	}
	if cursor > 0 {
		q := u.Query()
		q.Set("cursor", fmt.Sprintf("%d", cursor))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (s *Subscriber) subscribe(ctx context.Context) error {
	cursor, err := s.cursors.GetCursor(ctx, cursorStreamName)
	if err != nil {
		return fmt.Errorf("get cursor: %w", err)
	}

	wsURL, err := s.buildURL(cursor)
	if err != nil {
		return err
	}
	s.logger.Info("connecting to event stream", "url", wsURL, "cursor", cursor)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial event stream: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage when the context is cancelled.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	s.logger.Info("connected to event stream")

	lastCursorSave := time.Now()
	latestCursor := cursor
	var eventsReceived, postsSyndicated int64
	lastStatsLog := time.Now()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				s.saveCursor(context.WithoutCancel(ctx), latestCursor)
				return ctx.Err()
			}
			return fmt.Errorf("read message: %w", err)
		}

		e, err := parseEvent(message)
		if err != nil {
			s.logger.Error("failed to parse event", "error", err)
			continue
		}

		eventsReceived++
		if e.TimeUS > latestCursor {
			latestCursor = e.TimeUS
		}

		if s.handleEvent(ctx, e) {
			postsSyndicated++
		}

		if time.Since(lastStatsLog) >= 30*time.Second {
			s.logger.Info("event stream stats",
				"events_received", eventsReceived,
				"posts_syndicated", postsSyndicated,
			)
			lastStatsLog = time.Now()
		}

		if time.Since(lastCursorSave) >= cursorSaveInterval {
			if s.saveCursor(ctx, latestCursor) {
				lastCursorSave = time.Now()
			}
		}
	}
}

func (s *Subscriber) saveCursor(ctx context.Context, cursor int64) bool {
	if cursor <= 0 {
		return false
	}
	if err := s.cursors.UpdateCursor(ctx, cursorStreamName, cursor); err != nil {
		s.logger.Error("failed to save cursor", "error", err)
		return false
	}
	return true
}

// handleEvent syndicates the post named by a publish or update event. It
// reports whether the post was written back.
func (s *Subscriber) handleEvent(ctx context.Context, e *event) bool {
	if e.Kind != KindPublish && e.Kind != KindUpdate {
		return false
	}
	if e.URL == "" {
		s.logger.Warn("event without post url", "kind", e.Kind)
		return false
	}

	outcome, err := s.syndicator.SyndicatePost(ctx, e.URL, false)
	if err != nil {
		s.logger.Error("failed to syndicate post", "url", e.URL, "error", err)
		return false
	}

	s.logger.Info("processed post event",
		"url", e.URL,
		"kind", e.Kind,
		"syndication", outcome.Syndication,
		"failed_targets", outcome.FailedTargets,
		"message", outcome.Message,
	)
	return outcome.Message == ""
}
