package services

import (
	"context"

	types "github.com/yungbote/classroom-backend/internal/domain"
	"github.com/yungbote/classroom-backend/internal/realtime"
)

// JobNotifier pushes job lifecycle events to the job's channel.
type JobNotifier interface {
	JobCreated(ctx context.Context, job *types.JobRun)
	JobProgress(ctx context.Context, job *types.JobRun, stage string, progress int, message string)
	JobFailed(ctx context.Context, job *types.JobRun, stage string, errorMessage string)
	JobDone(ctx context.Context, job *types.JobRun)
}

type jobNotifier struct {
	emit realtime.Emitter
}

func NewJobNotifier(emit realtime.Emitter) JobNotifier {
	return &jobNotifier{emit: emit}
}

func (n *jobNotifier) send(ctx context.Context, job *types.JobRun, event realtime.SSEEvent, data map[string]any) {
	if n == nil || n.emit == nil || job == nil || job.ChannelKey == "" {
		return
	}
	data["job_id"] = job.ID
	data["job_type"] = job.JobType
	data["job"] = job
	n.emit.Emit(ctx, realtime.SSEMessage{
		Channel: job.ChannelKey,
		Event:   event,
		Data:    data,
	})
}

func (n *jobNotifier) JobCreated(ctx context.Context, job *types.JobRun) {
	n.send(ctx, job, realtime.SSEEventJobCreated, map[string]any{})
}

func (n *jobNotifier) JobProgress(ctx context.Context, job *types.JobRun, stage string, progress int, message string) {
	n.send(ctx, job, realtime.SSEEventJobProgress, map[string]any{
		"stage":    stage,
		"progress": progress,
		"message":  message,
	})
}

func (n *jobNotifier) JobFailed(ctx context.Context, job *types.JobRun, stage string, errorMessage string) {
	n.send(ctx, job, realtime.SSEEventJobFailed, map[string]any{
		"stage": stage,
		"error": errorMessage,
	})
}

func (n *jobNotifier) JobDone(ctx context.Context, job *types.JobRun) {
	n.send(ctx, job, realtime.SSEEventJobDone, map[string]any{})
}
