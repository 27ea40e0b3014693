package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Publisher hands a job message to the queue.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Worker consumes queued job messages.
type Worker struct {
	engine *Engine
}

func NewWorker(engine *Engine) *Worker {
	return &Worker{engine: engine}
}

// Handle decodes one job message and runs it. The outcome is only logged;
// a failed job has already notified the requester and is not redelivered.
func (w *Worker) Handle(ctx context.Context, payload []byte) error {
	var msg JobMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		slog.Error("[Export] Invalid job message", "error", err, "payload_size", len(payload))
		return fmt.Errorf("failed to decode export job: %w", err)
	}
	if msg.Email == "" || msg.Params.OrgID == "" {
		slog.Error("[Export] Job message missing email or orgId")
		return fmt.Errorf("export job is missing email or orgId")
	}

	_, err := w.engine.Generate(ctx, msg)
	return err
}

// LocalPublisher runs jobs in-process on a background goroutine. Used when
// no queue is configured.
type LocalPublisher struct {
	ctx    context.Context
	worker *Worker
}

// NewLocalPublisher runs published jobs under ctx, which should live as
// long as the process.
func NewLocalPublisher(ctx context.Context, worker *Worker) *LocalPublisher {
	return &LocalPublisher{ctx: ctx, worker: worker}
}

func (p *LocalPublisher) Publish(_ context.Context, key string, value []byte) error {
	go func() {
		if err := p.worker.Handle(p.ctx, value); err != nil {
			slog.Debug("[Export] Local job finished with error", "key", key, "error", err)
		}
	}()
	return nil
}
