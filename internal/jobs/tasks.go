// Package jobs runs the agent's background work: sweeping elapsed
// appointments into their final status and cleaning stale throttle state.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	TaskTypeCompleteElapsed = "appointments:complete_elapsed"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// CompleteElapsedPayload parametrizes the elapsed-appointment sweep.
type CompleteElapsedPayload struct {
	Reason string `json:"reason"`
}

// NewCompleteElapsedTask builds the sweep task. Reason distinguishes the
// scheduled cron run from an operator-triggered one in logs.
func NewCompleteElapsedTask(reason string) (*asynq.Task, error) {
	payload, err := json.Marshal(CompleteElapsedPayload{Reason: reason})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeCompleteElapsed, payload, asynq.Queue(QueueLow)), nil
}
