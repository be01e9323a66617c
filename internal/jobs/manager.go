package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Manager is the enqueue surface used by the HTTP layer to trigger background
// work on demand.
type Manager interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type manager struct {
	client *asynq.Client
	log    *slog.Logger
}

// NewManager builds a Manager backed by an asynq client.
func NewManager(redisOpt asynq.RedisConnOpt, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		client: asynq.NewClient(redisOpt),
		log:    log,
	}
}

func (m *manager) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	info, err := m.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}

	m.log.Debug("task enqueued",
		slog.String("type", task.Type()),
		slog.String("id", info.ID),
		slog.String("queue", info.Queue),
	)

	return info, nil
}

func (m *manager) Close() error {
	return m.client.Close()
}
