package sinks

import "context"

// Sink delivers run events to a downstream destination (HTTP, SQS, etc).
type Sink interface {
	ID() string
	Type() string
	Send(ctx context.Context, evt Event) error
}
