package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Dispatcher validates notifications and hands them to the queue. Delivery
// happens in the worker process.
type Dispatcher struct {
	queue  Queue
	logger *slog.Logger
}

func NewDispatcher(queue Queue, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{queue: queue, logger: logger}
}

func (d *Dispatcher) SendEmail(ctx context.Context, typ Type, payload Payload) error {
	if !typ.Valid() {
		return fmt.Errorf("unknown notification type %q", typ)
	}
	if err := payload.Validate(); err != nil {
		return err
	}

	job := Job{
		ID:         uuid.NewString(),
		Type:       typ,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := d.queue.Push(ctx, job); err != nil {
		return err
	}

	d.logger.Info("notification queued", "job_id", job.ID, "type", typ)
	return nil
}
