package events

import (
	"context"

	"servicehub/internal/domain"
)

type Sink interface {
	Publish(ctx context.Context, ev domain.RequestEvent)
}

// Fanout forwards each event to every sink in order. Nil sinks are skipped.
type Fanout []Sink

func NewFanout(sinks ...Sink) Fanout {
	out := make(Fanout, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (f Fanout) Publish(ctx context.Context, ev domain.RequestEvent) {
	for _, s := range f {
		s.Publish(ctx, ev)
	}
}
