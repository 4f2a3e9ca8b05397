package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/docflow/internal/infrastructure/resilience"
)

const (
	queueGroup       = "workers"
	enqueuedAtHeader = "Docflow-Enqueued-At"
)

// Queue publishes document ids for the worker process and consumes them there.
type Queue struct {
	conn         *nats.Conn
	subject      string
	executor     *resilience.Executor
	logger       *slog.Logger
	observe      func(time.Duration)
	drainTimeout time.Duration

	closed    chan struct{}
	closeOnce sync.Once
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
	// QueueLagObserver receives the delay between publish and consume.
	QueueLagObserver func(time.Duration)
	// DrainTimeout bounds how long shutdown waits for queued and running jobs.
	DrainTimeout time.Duration
}

func New(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	drainTimeout := options.DrainTimeout
	if drainTimeout <= 0 {
		drainTimeout = 30 * time.Second
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	q := &Queue{
		subject:      subject,
		executor:     options.ResilienceExecutor,
		logger:       logger,
		observe:      options.QueueLagObserver,
		drainTimeout: drainTimeout,
		closed:       make(chan struct{}),
	}
	conn, err := nats.Connect(
		url,
		nats.Name("docflow"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DrainTimeout(drainTimeout),
		nats.ClosedHandler(func(*nats.Conn) {
			q.markClosed()
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	q.conn = conn
	return q, nil
}

func (q *Queue) markClosed() {
	q.closeOnce.Do(func() { close(q.closed) })
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// Submit publishes a document id; the pipeline result is never reported back.
func (q *Queue) Submit(ctx context.Context, documentID string) error {
	call := func(_ context.Context) error {
		if err := q.conn.PublishMsg(newJobMessage(q.subject, documentID, time.Now())); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, submitOperation, call, classifySubmitError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// Consume blocks until ctx is done, running handler for each id with jobTimeout.
// Handler errors are logged; the message is not redelivered. On shutdown the
// connection is drained: buffered messages still run and Consume returns once
// the last handler has finished or the drain timeout passed.
func (q *Queue) Consume(ctx context.Context, jobTimeout time.Duration, handler func(context.Context, string) error) error {
	if jobTimeout <= 0 {
		jobTimeout = 5 * time.Minute
	}
	_, err := q.conn.QueueSubscribe(q.subject, queueGroup, q.jobCallback(ctx, jobTimeout, handler))
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	q.logger.Info("nats_draining", "subject", q.subject, "timeout", q.drainTimeout.String())
	if err := q.conn.Drain(); err != nil {
		return fmt.Errorf("nats drain: %w", err)
	}
	return waitClosed(q.closed, q.drainTimeout+time.Second)
}

// jobCallback detaches jobs from ctx cancellation so a signal never aborts a
// pipeline run half way; each job is still bounded by jobTimeout.
func (q *Queue) jobCallback(ctx context.Context, jobTimeout time.Duration, handler func(context.Context, string) error) nats.MsgHandler {
	base := context.WithoutCancel(ctx)
	return func(msg *nats.Msg) {
		documentID := string(msg.Data)
		if lag, ok := jobLag(msg, time.Now()); ok && q.observe != nil {
			q.observe(lag)
		}
		handlerCtx, cancel := context.WithTimeout(base, jobTimeout)
		defer cancel()
		if err := handler(handlerCtx, documentID); err != nil {
			q.logger.Error("pipeline_job_failed", "document_id", documentID, "error", err)
		}
	}
}

func waitClosed(closed <-chan struct{}, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-closed:
		return nil
	case <-timer.C:
		return errors.New("nats drain did not finish before timeout")
	}
}

func newJobMessage(subject, documentID string, now time.Time) *nats.Msg {
	msg := nats.NewMsg(subject)
	msg.Data = []byte(documentID)
	msg.Header.Set(enqueuedAtHeader, now.UTC().Format(time.RFC3339Nano))
	return msg
}

// jobLag is false for messages published without the header.
func jobLag(msg *nats.Msg, now time.Time) (time.Duration, bool) {
	if msg.Header == nil {
		return 0, false
	}
	raw := msg.Header.Get(enqueuedAtHeader)
	if raw == "" {
		return 0, false
	}
	enqueued, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return 0, false
	}
	return now.Sub(enqueued), true
}
