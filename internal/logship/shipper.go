// Package logship ships log records to RabbitMQ in the line format shared
// by all learnhub services.
package logship

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Publisher delivers one encoded message
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
}

// Message is the JSON body published for every record
type Message struct {
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
	Message   string `json:"message"`
}

const (
	defaultBufferSize     = 1024
	defaultPublishTimeout = 2 * time.Second
)

// Shipper publishes messages from a bounded queue in a single goroutine.
// Enqueue never blocks: when the queue is full the message is dropped.
type Shipper struct {
	publisher Publisher
	queue     chan Message
	done      chan struct{}
	timeout   time.Duration
	dropped   atomic.Int64
	// mu защищает closed и закрытие queue: отправка идет под RLock
	mu     sync.RWMutex
	closed bool
}

// NewShipper starts the publishing goroutine
func NewShipper(publisher Publisher, bufferSize int) *Shipper {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	s := &Shipper{
		publisher: publisher,
		queue:     make(chan Message, bufferSize),
		done:      make(chan struct{}),
		timeout:   defaultPublishTimeout,
	}
	go s.run()
	return s
}

func (s *Shipper) run() {
	defer close(s.done)
	for msg := range s.queue {
		body, err := json.Marshal(msg)
		if err != nil {
			s.dropped.Add(1)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		if err := s.publisher.Publish(ctx, body); err != nil {
			s.dropped.Add(1)
		}
		cancel()
	}
}

// Enqueue adds msg to the queue, or drops it when the queue is full
// or the shipper is closed
func (s *Shipper) Enqueue(msg Message) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.dropped.Add(1)
		return false
	}

	select {
	case s.queue <- msg:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// Dropped returns the number of messages that were not delivered
func (s *Shipper) Dropped() int64 {
	return s.dropped.Load()
}

// Close stops accepting messages and waits until the queue is drained
// or ctx is done.
func (s *Shipper) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestInfoFunc extracts the request url and correlation id from ctx
type RequestInfoFunc func(ctx context.Context) (url, correlationID string, ok bool)

// Handler is a slog.Handler that passes records to next and also ships them.
type Handler struct {
	next        slog.Handler
	shipper     *Shipper
	requestInfo RequestInfoFunc
	service     string
}

// NewHandler wraps next. requestInfo may be nil.
func NewHandler(next slog.Handler, shipper *Shipper, service string, requestInfo RequestInfoFunc) *Handler {
	return &Handler{
		next:        next,
		shipper:     shipper,
		service:     service,
		requestInfo: requestInfo,
	}
}

// Enabled follows the wrapped handler
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle writes the record locally and enqueues the formatted line
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	err := h.next.Handle(ctx, r)

	url, correlationID := "-", "-"
	if h.requestInfo != nil {
		if u, id, ok := h.requestInfo(ctx); ok {
			url, correlationID = u, id
		}
	}

	h.shipper.Enqueue(Message{
		Timestamp: r.Time.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Service:   h.service,
		Message:   FormatLine(r.Time, r.Level, url, correlationID, h.service, r.Message),
	})

	return err
}

// WithAttrs returns a handler whose local output carries attrs
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.next = h.next.WithAttrs(attrs)
	return &clone
}

// WithGroup returns a handler whose local output is grouped under name
func (h *Handler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.next = h.next.WithGroup(name)
	return &clone
}

// FormatLine renders "<ts> <LEVEL> <url> Correlation: <id> [<service>] - <msg>"
func FormatLine(t time.Time, level slog.Level, url, correlationID, service, msg string) string {
	return t.Format("2006-01-02 15:04:05,000") + " " + level.String() + " " + url +
		" Correlation: " + correlationID + " [" + service + "] - " + msg
}
