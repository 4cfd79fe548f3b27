package port

import "context"

// TaskPublisher enqueues a message on a named queue with at-least-once
// delivery.
type TaskPublisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// DLQPublisher parks a message that must not be retried.
type DLQPublisher interface {
	PublishToDLQ(ctx context.Context, msg []byte, reason string) error
}
