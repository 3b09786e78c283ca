package port

import "context"

// StatusPublisher emits a JSON-encoded entity.VideoStatusMessage for every
// job transition worth reporting.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, msg []byte) error
}

// DLQPublisher parks a sampling request that will never succeed.
type DLQPublisher interface {
	PublishToDLQ(ctx context.Context, msg []byte, reason string) error
}
