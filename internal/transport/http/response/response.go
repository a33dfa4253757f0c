package response

import (
	"encoding/json"
	"errors"
	"net/http"

	zlog "github.com/rs/zerolog/log"

	"github.com/baechuer/task-dispatch/internal/domain"
)

// ErrorBody is the error wire format:
// {"detail": "..."}
type ErrorBody struct {
	Detail string `json:"detail"`
}

// JSON writes raw JSON with Content-Type.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Data writes the payload as-is.
func Data(w http.ResponseWriter, status int, payload any) {
	JSON(w, status, payload)
}

// Fail writes the detail body.
func Fail(w http.ResponseWriter, status int, detail string) {
	JSON(w, status, ErrorBody{Detail: detail})
}

// Err maps an AppError to its HTTP status; anything else is a 500 with the
// details kept in logs only.
func Err(w http.ResponseWriter, err error) {
	if err == nil {
		Fail(w, http.StatusInternalServerError, "unknown error")
		return
	}

	var ae *domain.AppError
	if errors.As(err, &ae) {
		Fail(w, statusFromCode(ae.Code), ae.Message)
		return
	}

	zlog.Error().Err(err).Msg("unhandled error")
	Fail(w, http.StatusInternalServerError, "internal error")
}

func statusFromCode(code domain.ErrCode) int {
	switch code {
	case domain.CodeValidation:
		return http.StatusUnprocessableEntity
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeConflict:
		return http.StatusConflict
	case domain.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
