package nats

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func TestJobMessageCarriesEnqueueTime(t *testing.T) {
	published := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	msg := newJobMessage("documents.process", "doc-1", published)

	if msg.Subject != "documents.process" || string(msg.Data) != "doc-1" {
		t.Fatalf("unexpected message %q %q", msg.Subject, msg.Data)
	}
	lag, ok := jobLag(msg, published.Add(1500*time.Millisecond))
	if !ok {
		t.Fatalf("expected lag to be available")
	}
	if lag != 1500*time.Millisecond {
		t.Fatalf("unexpected lag %v", lag)
	}
}

func TestJobLagWithoutHeader(t *testing.T) {
	msg := &nats.Msg{Subject: "documents.process", Data: []byte("doc-1")}
	if _, ok := jobLag(msg, time.Now()); ok {
		t.Fatalf("expected no lag for message without header")
	}

	msg = nats.NewMsg("documents.process")
	msg.Header.Set(enqueuedAtHeader, "yesterday")
	if _, ok := jobLag(msg, time.Now()); ok {
		t.Fatalf("expected no lag for unparsable header")
	}
}

func TestJobCallbackOutlivesShutdownSignal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var (
		ran      []string
		ctxErr   error
		deadline bool
		lags     []time.Duration
	)
	q := &Queue{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		observe: func(lag time.Duration) { lags = append(lags, lag) },
	}
	callback := q.jobCallback(ctx, time.Minute, func(jobCtx context.Context, id string) error {
		ran = append(ran, id)
		ctxErr = jobCtx.Err()
		_, deadline = jobCtx.Deadline()
		return errors.New("absorbed")
	})

	callback(newJobMessage("documents.process", "doc-1", time.Now()))

	if len(ran) != 1 || ran[0] != "doc-1" {
		t.Fatalf("expected buffered job to run after cancel, ran %v", ran)
	}
	if ctxErr != nil {
		t.Fatalf("job context must not inherit cancellation, got %v", ctxErr)
	}
	if !deadline {
		t.Fatalf("job context must carry the job timeout")
	}
	if len(lags) != 1 {
		t.Fatalf("expected one lag observation, got %d", len(lags))
	}
}

func TestWaitClosed(t *testing.T) {
	closed := make(chan struct{})
	close(closed)
	if err := waitClosed(closed, time.Second); err != nil {
		t.Fatalf("waitClosed() error = %v", err)
	}
	if err := waitClosed(make(chan struct{}), 10*time.Millisecond); err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestMarkClosedIsIdempotent(t *testing.T) {
	q := &Queue{closed: make(chan struct{})}
	q.markClosed()
	q.markClosed()
	select {
	case <-q.closed:
	default:
		t.Fatalf("expected closed channel")
	}
}
