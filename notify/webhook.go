// Package notify delivers signing events to users.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/jmcleod/signhand/signing"
)

const (
	// DefaultQueueSize is the bounded capacity for queued deliveries.
	DefaultQueueSize = 1024
	// DefaultMaxTries bounds delivery attempts per event.
	DefaultMaxTries = 4
)

// payload is the JSON body POSTed to the endpoint.
type payload struct {
	UserID string        `json:"user_id"`
	Event  signing.Event `json:"event"`
}

// Webhook posts events to an HTTP endpoint. Notify enqueues without
// blocking; a background goroutine delivers with exponential backoff on
// network errors and 5xx responses. When the queue is full the event is
// dropped and Notify reports ErrNotificationFailed.
type Webhook struct {
	url        string
	authHeader string
	client     *http.Client
	logger     *slog.Logger
	maxTries   uint
	initial    time.Duration
	maxWait    time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan payload
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

var _ signing.NotificationDispatcher = (*Webhook)(nil)

// WebhookOption configures a Webhook.
type WebhookOption func(*Webhook)

// WithAuthHeader sets a header sent with every delivery, in
// "Header: Value" form, e.g. "Authorization: Bearer xxx".
func WithAuthHeader(h string) WebhookOption {
	return func(w *Webhook) { w.authHeader = h }
}

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(w *Webhook) { w.client = c }
}

// WithMaxTries sets the number of delivery attempts per event.
func WithMaxTries(n uint) WebhookOption {
	return func(w *Webhook) {
		if n > 0 {
			w.maxTries = n
		}
	}
}

// WithRetryInterval sets the initial and maximum backoff between attempts.
func WithRetryInterval(initial, max time.Duration) WebhookOption {
	return func(w *Webhook) {
		w.initial = initial
		w.maxWait = max
	}
}

// WithWebhookLogger sets the logger.
func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(w *Webhook) { w.logger = l }
}

// NewWebhook creates a webhook dispatcher and starts its delivery loop.
func NewWebhook(url string, queueSize int, opts ...WebhookOption) *Webhook {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	w := &Webhook{
		url:      url,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   slog.Default().With("component", "notify-webhook"),
		maxTries: DefaultMaxTries,
		initial:  500 * time.Millisecond,
		maxWait:  10 * time.Second,
		queue:    make(chan payload, queueSize),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.wg.Add(1)
	go w.loop()
	return w
}

// Notify implements signing.NotificationDispatcher.
func (w *Webhook) Notify(_ context.Context, userID string, ev signing.Event) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return fmt.Errorf("%w: webhook closed", signing.ErrNotificationFailed)
	}
	select {
	case w.queue <- payload{UserID: userID, Event: ev}:
		return nil
	default:
		w.logger.Warn("queue full, dropping event", "kind", ev.Kind, "user_id", userID)
		return fmt.Errorf("%w: queue full", signing.ErrNotificationFailed)
	}
}

// Close stops accepting events and waits for queued deliveries to finish
// or for ctx to end, whichever comes first.
func (w *Webhook) Close(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		w.cancel()
		return nil
	case <-ctx.Done():
		w.cancel()
		<-done
		return ctx.Err()
	}
}

func (w *Webhook) loop() {
	defer w.wg.Done()
	for p := range w.queue {
		if err := w.deliver(w.ctx, p); err != nil {
			w.logger.Warn("delivery failed", "kind", p.Event.Kind, "user_id", p.UserID, "error", err)
		}
	}
}

func (w *Webhook) deliver(ctx context.Context, p payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.initial
	b.MaxInterval = w.maxWait

	attempt := 0
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "Signhand-Notify/1.0")
		if name, value, ok := strings.Cut(w.authHeader, ":"); ok {
			req.Header.Set(strings.TrimSpace(name), strings.TrimSpace(value))
		}

		resp, err := w.client.Do(req)
		if err != nil {
			w.logger.Debug("request failed", "error", err, "attempt", attempt)
			return struct{}{}, err
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return struct{}{}, nil
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return struct{}{}, fmt.Errorf("server error: %d", resp.StatusCode)
		default:
			// 4xx will not succeed on retry.
			return struct{}{}, backoff.Permanent(fmt.Errorf("client error: %d", resp.StatusCode))
		}
	}, backoff.WithBackOff(b), backoff.WithMaxTries(w.maxTries))
	if err != nil {
		return fmt.Errorf("%w: %v", signing.ErrNotificationFailed, err)
	}
	return nil
}
