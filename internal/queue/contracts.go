package queue

import (
	"context"

	"github.com/taskops/reporting-service/internal/domain"
)

// Producer sends report generation jobs to a queue backend.
type Producer interface {
	Enqueue(ctx context.Context, message domain.QueueMessage) error
}

// Consumer receives report generation jobs and executes a handler per message.
// Delivery is at-least-once; the store's compare-and-set transition makes job
// execution at-most-once.
type Consumer interface {
	Consume(ctx context.Context, handler func(context.Context, domain.QueueMessage) error) error
}
