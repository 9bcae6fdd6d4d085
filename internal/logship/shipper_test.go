package logship

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	block  chan struct{}
	err    error
	bodies [][]byte
	mu     sync.Mutex
}

func (p *fakePublisher) Publish(ctx context.Context, body []byte) error {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.bodies = append(p.bodies, body)
	return nil
}

func (p *fakePublisher) messages(t *testing.T) []Message {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Message, 0, len(p.bodies))
	for _, b := range p.bodies {
		var m Message
		require.NoError(t, json.Unmarshal(b, &m))
		out = append(out, m)
	}
	return out
}

func TestFormatLine(t *testing.T) {
	ts := time.Date(2026, 1, 4, 11, 3, 8, 610_000_000, time.UTC)
	got := FormatLine(ts, slog.LevelInfo, "/healthz", "abc-123", "user-service", "ok")
	assert.Equal(t, "2026-01-04 11:03:08,610 INFO /healthz Correlation: abc-123 [user-service] - ok", got)
}

func TestHandler_ShipsAndWritesLocally(t *testing.T) {
	pub := &fakePublisher{}
	shipper := NewShipper(pub, 16)

	var local bytes.Buffer
	info := func(ctx context.Context) (string, string, bool) {
		id, ok := ctx.Value(ctxKey{}).(string)
		return "/users/login", id, ok
	}
	logger := slog.New(NewHandler(slog.NewTextHandler(&local, nil), shipper, "user-service", info)).
		With(slog.String("component", "auth"))

	ctx := context.WithValue(context.Background(), ctxKey{}, "corr-1")
	logger.WarnContext(ctx, "login failed")
	logger.Info("started")

	require.NoError(t, shipper.Close(context.Background()))

	msgs := pub.messages(t)
	require.Len(t, msgs, 2)

	assert.Equal(t, "user-service", msgs[0].Service)
	assert.Contains(t, msgs[0].Message, " WARN /users/login Correlation: corr-1 [user-service] - login failed")
	assert.Contains(t, msgs[1].Message, " INFO - Correlation: - [user-service] - started")

	_, err := time.Parse(time.RFC3339, msgs[0].Timestamp)
	assert.NoError(t, err)

	assert.Contains(t, local.String(), "component=auth")
	assert.Contains(t, local.String(), "login failed")
}

type ctxKey struct{}

func TestHandler_RespectsLevel(t *testing.T) {
	pub := &fakePublisher{}
	shipper := NewShipper(pub, 16)
	logger := slog.New(NewHandler(
		slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn}),
		shipper, "svc", nil,
	))

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Error("visible")

	require.NoError(t, shipper.Close(context.Background()))
	assert.Len(t, pub.messages(t), 1)
}

func TestShipper_DropsWhenFull(t *testing.T) {
	pub := &fakePublisher{block: make(chan struct{})}
	shipper := NewShipper(pub, 1)

	// Первое сообщение забирает горутина и блокируется в Publish,
	// второе занимает буфер, остальные отбрасываются.
	require.True(t, shipper.Enqueue(Message{Message: "1"}))
	require.Eventually(t, func() bool { return len(shipper.queue) == 0 }, time.Second, time.Millisecond)
	require.True(t, shipper.Enqueue(Message{Message: "2"}))

	assert.False(t, shipper.Enqueue(Message{Message: "3"}))
	assert.False(t, shipper.Enqueue(Message{Message: "4"}))
	assert.Equal(t, int64(2), shipper.Dropped())

	close(pub.block)
	require.NoError(t, shipper.Close(context.Background()))
	assert.Len(t, pub.messages(t), 2)
}

func TestShipper_PublishErrorsAreCounted(t *testing.T) {
	pub := &fakePublisher{err: errors.New("channel closed")}
	shipper := NewShipper(pub, 4)

	shipper.Enqueue(Message{Message: "a"})
	shipper.Enqueue(Message{Message: "b"})
	require.NoError(t, shipper.Close(context.Background()))

	assert.Equal(t, int64(2), shipper.Dropped())
}

func TestShipper_EnqueueAfterClose(t *testing.T) {
	shipper := NewShipper(&fakePublisher{}, 4)
	require.NoError(t, shipper.Close(context.Background()))
	require.NoError(t, shipper.Close(context.Background()))

	assert.False(t, shipper.Enqueue(Message{Message: "late"}))
	assert.Equal(t, int64(1), shipper.Dropped())
}

func TestShipper_EnqueueRacingClose(t *testing.T) {
	pub := &fakePublisher{}
	shipper := NewShipper(pub, 1024)

	const (
		workers = 8
		perWork = 50
	)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWork {
				if shipper.Enqueue(Message{Message: "m"}) {
					mu.Lock()
					accepted++
					mu.Unlock()
				}
			}
		}()
	}

	require.NoError(t, shipper.Close(context.Background()))
	wg.Wait()

	// каждое сообщение либо доставлено, либо учтено как потерянное
	assert.Len(t, pub.messages(t), accepted)
	assert.Equal(t, int64(workers*perWork-accepted), shipper.Dropped())
}

func TestShipper_CloseHonoursContext(t *testing.T) {
	pub := &fakePublisher{block: make(chan struct{})}
	shipper := NewShipper(pub, 4)
	shipper.Enqueue(Message{Message: "stuck"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, shipper.Close(ctx), context.DeadlineExceeded)

	close(pub.block)
}
