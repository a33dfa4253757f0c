package validate

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// Limit parses the limit query param. Absent means the default of 20;
// anything outside [1,100] or non-numeric is rejected, never clamped.
func Limit(raw string) (int, bool) {
	if raw == "" {
		return 20, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 100 {
		return 0, false
	}
	return n, true
}

// Offset parses the offset query param. Absent means 0; negative or
// non-numeric values are rejected.
func Offset(raw string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
