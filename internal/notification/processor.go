package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type Worker struct {
	ID         int
	WorkerPool chan chan Job
	JobChannel chan Job
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan Job, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan Job),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(Job)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("worker processing job", "worker_id", w.ID, "job_id", job.ID)
				processFunc(job)
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

type ProcessorConfig struct {
	MaxWorkers     int
	JobQueueSize   int
	MaxAttempts    int
	Backoff        time.Duration
	IdempotencyTTL time.Duration
	PollTimeout    time.Duration
}

// Processor drains the queue into a pool of workers that deliver emails with
// retries.
type Processor struct {
	queue       Queue
	idempotency IdempotencyStore
	sender      Sender
	logger      *slog.Logger

	maxAttempts    int
	backoff        time.Duration
	idempotencyTTL time.Duration
	pollTimeout    time.Duration

	jobQueue   chan Job
	polled     chan struct{}
	workerPool chan chan Job
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once
}

func NewProcessor(queue Queue, idempotency IdempotencyStore, sender Sender, config ProcessorConfig, logger *slog.Logger) *Processor {
	maxWorkers := config.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	jobQueueSize := config.JobQueueSize
	if jobQueueSize <= 0 {
		jobQueueSize = 100
	}

	maxAttempts := config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	backoff := config.Backoff
	if backoff <= 0 {
		backoff = 5 * time.Second
	}

	idempotencyTTL := config.IdempotencyTTL
	if idempotencyTTL <= 0 {
		idempotencyTTL = time.Hour
	}

	pollTimeout := config.PollTimeout
	if pollTimeout < time.Second {
		pollTimeout = time.Second
	}

	return &Processor{
		queue:          queue,
		idempotency:    idempotency,
		sender:         sender,
		logger:         logger,
		maxAttempts:    maxAttempts,
		backoff:        backoff,
		idempotencyTTL: idempotencyTTL,
		pollTimeout:    pollTimeout,
		maxWorkers:     maxWorkers,
		jobQueue:       make(chan Job, jobQueueSize),
		polled:         make(chan struct{}),
		workerPool:     make(chan chan Job, maxWorkers),
	}
}

// Start launches the workers, the dispatcher and the queue poller. Calling it
// more than once has no effect.
func (p *Processor) Start(ctx context.Context) {
	p.once.Do(func() {
		p.ctx, p.cancel = context.WithCancel(ctx)

		for i := 0; i < p.maxWorkers; i++ {
			worker := NewWorker(i, p.workerPool, p.logger)
			worker.Start(p.ctx, &p.wg, p.process)
		}

		p.wg.Add(2)
		go p.dispatch()
		go p.poll()

		p.logger.Info("notification worker pool started",
			"max_workers", p.maxWorkers,
			"queue_size", cap(p.jobQueue))
	})
}

func (p *Processor) Shutdown() {
	if p.cancel == nil {
		return
	}
	p.logger.Info("shutting down notification processor")
	p.cancel()
	p.wg.Wait()
	p.logger.Info("notification processor shutdown complete")
}

func (p *Processor) poll() {
	defer p.wg.Done()
	defer close(p.polled)

	for {
		if p.ctx.Err() != nil {
			return
		}

		// A cancelled BLPOP may still remove the element server side, so the
		// pop itself always runs to completion. It returns within pollTimeout.
		job, err := p.queue.Pop(context.WithoutCancel(p.ctx), p.pollTimeout)
		if err != nil {
			p.logger.Error("failed to pop notification job", "error", err)
			p.sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		select {
		case p.jobQueue <- *job:
		case <-p.ctx.Done():
			p.requeueLogged(*job)
			return
		}
	}
}

func (p *Processor) dispatch() {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.jobQueue:
			select {
			case jobChannel := <-p.workerPool:
				select {
				case jobChannel <- job:
				case <-p.ctx.Done():
					p.requeueLogged(job)
					p.drain()
					return
				}
			case <-p.ctx.Done():
				p.requeueLogged(job)
				p.drain()
				return
			}
		case <-p.ctx.Done():
			p.drain()
			return
		}
	}
}

// drain pushes every buffered job back onto the queue once the poller has
// stopped feeding the buffer.
func (p *Processor) drain() {
	<-p.polled
	p.logger.Info("dispatcher shutting down", "buffered_jobs", len(p.jobQueue))
	for {
		select {
		case job := <-p.jobQueue:
			p.requeueLogged(job)
		default:
			return
		}
	}
}

func (p *Processor) requeueLogged(job Job) {
	if err := p.requeue(p.ctx, job); err != nil {
		p.logger.Error("failed to requeue notification job", "job_id", job.ID, "error", err)
	}
}

// requeue puts a job interrupted by shutdown back on the shared queue.
func (p *Processor) requeue(ctx context.Context, job Job) error {
	if err := p.queue.Push(context.WithoutCancel(ctx), job); err != nil {
		return fmt.Errorf("requeue %s notification: %w", job.Type, err)
	}
	p.logger.Info("notification requeued", "job_id", job.ID, "type", job.Type)
	return nil
}

func (p *Processor) process(job Job) {
	if err := p.Handle(p.ctx, job); err != nil {
		p.logger.Error("notification failed",
			"job_id", job.ID,
			"type", job.Type,
			"error", err)
	}
}

// Handle delivers one job. A job whose idempotency key was already taken is
// skipped. When every attempt fails the key is released so a later resend
// is not suppressed. A job interrupted by ctx is put back on the queue with
// its key released.
func (p *Processor) Handle(ctx context.Context, job Job) error {
	if ctx.Err() != nil {
		return p.requeue(ctx, job)
	}

	key := job.Payload.IdempotencyKey
	if key != "" {
		acquired, err := p.idempotency.Acquire(context.WithoutCancel(ctx), key, p.idempotencyTTL)
		if err != nil {
			return err
		}
		if !acquired {
			p.logger.Info("skipping duplicate notification", "job_id", job.ID, "idempotency_key", key)
			return nil
		}
	}

	msg := NewMessage(job)
	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		lastErr = p.sender.Send(ctx, msg)
		if lastErr == nil {
			p.logger.Info("notification sent", "job_id", job.ID, "type", job.Type, "attempt", attempt)
			return nil
		}

		p.logger.Warn("notification attempt failed",
			"job_id", job.ID,
			"attempt", attempt,
			"error", lastErr)

		if ctx.Err() != nil {
			break
		}
		if attempt < p.maxAttempts {
			delay := p.backoff * time.Duration(1<<(attempt-1))
			if !p.sleepCtx(ctx, delay) {
				break
			}
		}
	}

	if key != "" {
		if err := p.idempotency.Release(context.WithoutCancel(ctx), key); err != nil {
			p.logger.Error("failed to release idempotency key", "idempotency_key", key, "error", err)
		}
	}
	if ctx.Err() != nil {
		return p.requeue(ctx, job)
	}
	return fmt.Errorf("send %s notification after %d attempts: %w", job.Type, p.maxAttempts, lastErr)
}

func (p *Processor) sleep(d time.Duration) {
	p.sleepCtx(p.ctx, d)
}

func (p *Processor) sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
