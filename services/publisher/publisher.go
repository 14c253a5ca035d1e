package publisher

import "context"

// Message kinds published after a run
const (
	KindUnmatched = "unmatched"
	KindWeekly    = "weekly"
)

// Publisher represents a service for publishing messages
type Publisher interface {
	// Publish publishes a message to the stream for kind
	Publish(ctx context.Context, kind string, message []byte) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams(ctx context.Context) error

	// Close closes the publisher connection
	Close() error
}
