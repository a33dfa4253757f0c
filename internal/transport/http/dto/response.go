package dto

import "time"

// TaskResp is the stable API response model.
type TaskResp struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Priority    string  `json:"priority"`
	Status      string  `json:"status"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	Result *string `json:"result,omitempty"`
	Error  *string `json:"error,omitempty"`
}

type ListResp struct {
	Items  []TaskResp `json:"items"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

type StatusResp struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}
