package provisioning

import (
	"context"
	"strings"

	"github.com/yungbote/classroom-backend/internal/realtime"
)

type Stage string

const (
	StageCreateRepo                 Stage = "create_repo"
	StageImportingStarterCode       Stage = "importing_starter_code"
	StageRepositoryCreationComplete Stage = "repository_creation_complete"
	StageErrored                    Stage = "errored"
)

// Broadcaster publishes progress text for live listeners. Delivery is best
// effort and a failed publish never fails provisioning.
type Broadcaster interface {
	Publish(ctx context.Context, attemptKey string, stage Stage, message string) error
}

// ProgressEvent is the payload of a realtime.SSEEventProvisionProgress
// message.
type ProgressEvent struct {
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
}

type RealtimeBroadcaster struct {
	emitter realtime.Emitter
}

func NewRealtimeBroadcaster(emitter realtime.Emitter) *RealtimeBroadcaster {
	return &RealtimeBroadcaster{emitter: emitter}
}

func (b *RealtimeBroadcaster) Publish(ctx context.Context, attemptKey string, stage Stage, message string) error {
	if b == nil || b.emitter == nil || strings.TrimSpace(attemptKey) == "" {
		return nil
	}
	b.emitter.Emit(ctx, realtime.SSEMessage{
		Channel: attemptKey,
		Event:   realtime.SSEEventProvisionProgress,
		Data:    ProgressEvent{Stage: stage, Message: message},
	})
	return nil
}

type NopBroadcaster struct{}

func (NopBroadcaster) Publish(ctx context.Context, attemptKey string, stage Stage, message string) error {
	return nil
}
