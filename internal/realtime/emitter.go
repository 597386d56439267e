package realtime

import (
	"context"
)

type Emitter interface {
	Emit(ctx context.Context, msg SSEMessage)
}

// Publisher is the subset of bus.Bus an emitter needs.
type Publisher interface {
	Publish(ctx context.Context, msg SSEMessage) error
}

type HubEmitter struct{ Hub *SSEHub }

func (e *HubEmitter) Emit(ctx context.Context, msg SSEMessage) {
	if e == nil || e.Hub == nil {
		return
	}
	e.Hub.Broadcast(msg)
}

// BusEmitter publishes to the cross-process bus and falls back to the local
// hub when publishing fails.
type BusEmitter struct {
	Bus      Publisher
	Fallback *SSEHub
}

func (e *BusEmitter) Emit(ctx context.Context, msg SSEMessage) {
	if e == nil {
		return
	}
	if e.Bus != nil {
		if err := e.Bus.Publish(ctx, msg); err == nil {
			return
		}
	}
	if e.Fallback != nil {
		e.Fallback.Broadcast(msg)
	}
}
