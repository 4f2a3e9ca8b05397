// Package inproc runs the document pipeline on a bounded in-process worker pool.
package inproc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/docflow/internal/core/domain"
)

type Handler func(ctx context.Context, documentID string) error

type job struct {
	documentID string
	enqueuedAt time.Time
}

type Pool struct {
	handler    Handler
	workers    int
	queueSize  int
	jobTimeout time.Duration
	onLag      func(time.Duration)
	logger     *slog.Logger

	jobs   chan job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type Option func(*Pool)

func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

func WithJobTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.jobTimeout = d
		}
	}
}

// WithQueueLagObserver receives the time each job spent waiting for a worker.
func WithQueueLagObserver(fn func(time.Duration)) Option {
	return func(p *Pool) { p.onLag = fn }
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New starts the workers immediately.
func New(handler Handler, opts ...Option) *Pool {
	p := &Pool{
		handler:    handler,
		workers:    4,
		queueSize:  128,
		jobTimeout: 5 * time.Minute,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.jobs = make(chan job, p.queueSize)
	p.ctx, p.cancel = context.WithCancel(context.Background())

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit enqueues without blocking. A full or stopped pool is a temporary failure.
func (p *Pool) Submit(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return domain.WrapError(domain.ErrTemporary, "submit pipeline job", errors.New("pool is shutting down"))
	}

	select {
	case p.jobs <- job{documentID: documentID, enqueuedAt: time.Now()}:
		return nil
	default:
		return domain.WrapError(domain.ErrTemporary, "submit pipeline job", fmt.Errorf("queue full (%d)", p.queueSize))
	}
}

// Shutdown stops intake and waits for queued jobs. When ctx expires first, in-flight
// jobs are cancelled and ctx.Err is returned.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		if p.onLag != nil {
			p.onLag(time.Since(j.enqueuedAt))
		}
		p.run(j)
	}
}

func (p *Pool) run(j job) {
	ctx, cancel := context.WithTimeout(p.ctx, p.jobTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pipeline_job_panic", "document_id", j.documentID, "panic", fmt.Sprint(r))
		}
	}()

	if err := p.handler(ctx, j.documentID); err != nil {
		p.logger.Error("pipeline_job_failed", "document_id", j.documentID, "error", err)
	}
}
