//go:build integration
// +build integration

package cases

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/baechuer/task-dispatch/test/integration/infra"
	"github.com/baechuer/task-dispatch/test/integration/infra/wait"
)

type Env struct {
	BaseURL string
	DBURL   string
}

func mustEnv(t *testing.T, k string) string {
	t.Helper()
	v := os.Getenv(k)
	if v == "" {
		t.Fatalf("missing env %s", k)
	}
	return v
}

func setup(t *testing.T) Env {
	t.Helper()

	e := Env{
		BaseURL: mustEnv(t, "TASKS_BASE_URL"),
		DBURL:   mustEnv(t, "DATABASE_URL"),
	}

	if err := wait.HTTP200(e.BaseURL+"/healthz", 10*time.Second); err != nil {
		t.Fatalf("service not ready: %v", err)
	}

	db, err := infra.OpenDB(e.DBURL)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := infra.PingDB(db); err != nil {
		t.Fatalf("ping db: %v", err)
	}
	if err := infra.ResetTasks(db); err != nil {
		t.Fatalf("reset tasks: %v", err)
	}

	return e
}

type ErrorResp struct {
	Detail string `json:"detail"`
}

func doJSON(t *testing.T, method, url string, body any) (int, json.RawMessage) {
	t.Helper()

	var b []byte
	if body != nil {
		var err error
		b, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, bytes.NewReader(b))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var raw json.RawMessage
	_ = json.NewDecoder(resp.Body).Decode(&raw)
	return resp.StatusCode, raw
}

func mustUnmarshal(t *testing.T, raw json.RawMessage, dst any) {
	t.Helper()
	if err := json.Unmarshal(raw, dst); err != nil {
		t.Fatalf("unmarshal %s: %v", raw, err)
	}
}

// waitForStatus polls GET /tasks/{id}/status until the task reaches want or
// the timeout elapses, returning the last observed status.
func waitForStatus(t *testing.T, e Env, id, want string, timeout time.Duration) string {
	t.Helper()

	deadline := time.Now().Add(timeout)
	last := ""
	for time.Now().Before(deadline) {
		code, raw := doJSON(t, "GET", e.BaseURL+"/api/v1/tasks/"+id+"/status", nil)
		if code == http.StatusOK {
			var st struct {
				Status string `json:"status"`
			}
			_ = json.Unmarshal(raw, &st)
			last = st.Status
			if last == want {
				return last
			}
		}
		time.Sleep(200 * time.Millisecond)
	}
	return last
}
