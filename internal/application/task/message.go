package task

import (
	"encoding/json"

	"github.com/baechuer/task-dispatch/internal/domain"
)

// TaskMessage is the wire contract for primary queues and the DLQ.
// The retry count travels separately in the x-retry-count header.
type TaskMessage struct {
	TaskID   string `json:"task_id"`
	Priority string `json:"priority"`
}

func EncodeTaskMessage(taskID string, priority domain.Priority) (map[string]any, []byte, error) {
	payload := map[string]any{
		"task_id":  taskID,
		"priority": string(priority),
	}
	body, err := json.Marshal(TaskMessage{TaskID: taskID, Priority: string(priority)})
	if err != nil {
		return nil, nil, err
	}
	return payload, body, nil
}
