// Package alert delivers failure notices to the operator channel.
package alert

import "context"

// Sink receives human-readable failure messages. Delivery problems are the
// caller's to log; they must never fail a backup run.
type Sink interface {
	Notify(ctx context.Context, message string) error
}

// Noop is the sink used when no alert credentials are configured.
type Noop struct{}

func (Noop) Notify(context.Context, string) error { return nil }
