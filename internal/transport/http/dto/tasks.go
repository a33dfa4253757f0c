package dto

type CreateTaskReq struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Priority    string  `json:"priority,omitempty"`
}
