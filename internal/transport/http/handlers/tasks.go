package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/baechuer/task-dispatch/internal/application/task"
	"github.com/baechuer/task-dispatch/internal/domain"
	"github.com/baechuer/task-dispatch/internal/transport/http/dto"
	"github.com/baechuer/task-dispatch/internal/transport/http/response"
	"github.com/baechuer/task-dispatch/internal/transport/http/validate"
)

type TasksHandler struct {
	svc *task.Service
}

func NewTasksHandler(svc *task.Service) *TasksHandler {
	return &TasksHandler{svc: svc}
}

func (h *TasksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTaskReq
	if err := validate.DecodeJSON(r, &req); err != nil {
		response.Err(w, domain.ErrValidation("malformed JSON body"))
		return
	}

	t, err := h.svc.Create(r.Context(), task.CreateCmd{
		Title:       req.Title,
		Description: req.Description,
		Priority:    domain.Priority(req.Priority),
	})
	if err != nil {
		response.Err(w, err)
		return
	}
	response.Data(w, http.StatusCreated, dto.ToTaskResp(t))
}

func (h *TasksHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "task_id")
	if !validate.IsUUID(id) {
		response.Err(w, domain.ErrNotFound("task not found"))
		return
	}

	t, err := h.svc.Get(r.Context(), id)
	if err != nil {
		response.Err(w, err)
		return
	}
	response.Data(w, http.StatusOK, dto.ToTaskResp(t))
}

func (h *TasksHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, ok := validate.Limit(q.Get("limit"))
	if !ok {
		response.Err(w, domain.ErrValidation("limit must be an integer in [1,100]"))
		return
	}
	offset, ok := validate.Offset(q.Get("offset"))
	if !ok {
		response.Err(w, domain.ErrValidation("offset must be a non-negative integer"))
		return
	}

	filter := task.ListFilter{Limit: limit, Offset: offset}
	if v := q.Get("status"); v != "" {
		st := domain.TaskStatus(v)
		if !st.Valid() {
			response.Err(w, domain.ErrValidation("invalid status filter"))
			return
		}
		filter.Status = &st
	}
	if v := q.Get("priority"); v != "" {
		p := domain.Priority(v)
		if !p.Valid() {
			response.Err(w, domain.ErrValidation("priority must be one of: LOW, MEDIUM, HIGH"))
			return
		}
		filter.Priority = &p
	}

	items, err := h.svc.List(r.Context(), filter)
	if err != nil {
		response.Err(w, err)
		return
	}

	out := make([]dto.TaskResp, 0, len(items))
	for _, it := range items {
		out = append(out, dto.ToTaskResp(it))
	}
	response.Data(w, http.StatusOK, dto.ListResp{
		Items:  out,
		Limit:  limit,
		Offset: offset,
	})
}

func (h *TasksHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "task_id")
	if !validate.IsUUID(id) {
		response.Err(w, domain.ErrNotFound("task not found"))
		return
	}

	st, err := h.svc.Status(r.Context(), id)
	if err != nil {
		response.Err(w, err)
		return
	}
	response.Data(w, http.StatusOK, dto.StatusResp{ID: id, Status: string(st)})
}

func (h *TasksHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "task_id")
	if !validate.IsUUID(id) {
		response.Err(w, domain.ErrNotFound("task not found"))
		return
	}

	t, err := h.svc.Cancel(r.Context(), id)
	if err != nil {
		response.Err(w, err)
		return
	}
	response.Data(w, http.StatusOK, dto.ToTaskResp(t))
}
