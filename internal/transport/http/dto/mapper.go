package dto

import "github.com/baechuer/task-dispatch/internal/domain"

func ToTaskResp(t *domain.Task) TaskResp {
	return TaskResp{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    string(t.Priority),
		Status:      string(t.Status),

		CreatedAt:  t.CreatedAt,
		StartedAt:  t.StartedAt,
		FinishedAt: t.FinishedAt,

		Result: t.Result,
		Error:  t.Error,
	}
}
