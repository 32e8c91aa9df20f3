package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/lemonberrylabs/bigrun/pkg/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return New(store.New(), Options{Timeout: 10 * time.Second})
}

func doRequest(t *testing.T, srv *Server, method, path, body string) (int, string, map[string][]string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" && strings.HasPrefix(body, "{") {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(data), resp.Header
}

func deploy(t *testing.T, srv *Server, name, source string) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"name": name, "source": source})
	if code, resp, _ := doRequest(t, srv, "POST", "/v1/scripts", string(body)); code != 200 {
		t.Fatalf("deploy %s: status %d: %s", name, code, resp)
	}
}

// waitForState polls an execution until it leaves ACTIVE.
func waitForState(t *testing.T, srv *Server, id string) *store.Execution {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		exec, err := srv.Store().GetExecution(id)
		if err != nil {
			t.Fatalf("get execution: %v", err)
		}
		if exec.State != store.ExecutionActive {
			return exec
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("execution %s still active", id)
	return nil
}

func startExecution(t *testing.T, srv *Server, script, body string) string {
	t.Helper()
	code, resp, _ := doRequest(t, srv, "POST", "/v1/scripts/"+script+"/executions", body)
	if code != 200 {
		t.Fatalf("create execution: status %d: %s", code, resp)
	}
	var exec store.Execution
	if err := json.Unmarshal([]byte(resp), &exec); err != nil {
		t.Fatalf("decode execution: %v", err)
	}
	return exec.ID
}

func TestScriptCRUD(t *testing.T) {
	srv := newTestServer(t)
	deploy(t, srv, "hello", `print "hello"`)

	code, body, _ := doRequest(t, srv, "GET", "/v1/scripts/hello", "")
	if code != 200 || !strings.Contains(body, `"revisionId":"000001"`) {
		t.Errorf("get: %d %s", code, body)
	}

	code, body, _ = doRequest(t, srv, "POST", "/v1/scripts", `{"name":"hello","source":"print 1"}`)
	if code != 409 || !strings.Contains(body, "ALREADY_EXISTS") {
		t.Errorf("duplicate create: %d %s", code, body)
	}

	code, body, _ = doRequest(t, srv, "PUT", "/v1/scripts/hello", `{"source":"print \"v2\""}`)
	if code != 200 || !strings.Contains(body, `"revisionId":"000002"`) {
		t.Errorf("update: %d %s", code, body)
	}

	code, body, _ = doRequest(t, srv, "GET", "/v1/scripts", "")
	if code != 200 || !strings.Contains(body, `"name":"hello"`) {
		t.Errorf("list: %d %s", code, body)
	}

	if code, _, _ = doRequest(t, srv, "DELETE", "/v1/scripts/hello", ""); code != 200 {
		t.Errorf("delete: %d", code)
	}
	if code, _, _ = doRequest(t, srv, "GET", "/v1/scripts/hello", ""); code != 404 {
		t.Errorf("get after delete: %d", code)
	}
}

func TestCreateScriptValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing name", `{"source":"print 1"}`, "invalid script name"},
		{"bad name", `{"name":"9lives","source":"print 1"}`, "invalid script name"},
		{"missing source", `{"name":"empty"}`, "source is required"},
		{"reserved identifier", `{"name":"val","source":"Val = 1"}`, "reserved internal keyword"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body, _ := doRequest(t, srv, "POST", "/v1/scripts", tt.body)
			if code != 400 || !strings.Contains(body, tt.want) {
				t.Errorf("status %d body %s, want 400 with %q", code, body, tt.want)
			}
		})
	}
}

func TestExecutionSucceeds(t *testing.T) {
	srv := newTestServer(t)
	deploy(t, srv, "args", "command & set as {A} {B}\nTotal = A + B\nprint \"sum \" & Total")

	id := startExecution(t, srv, "args", `{"args":["2","3"]}`)
	exec := waitForState(t, srv, id)
	if exec.State != store.ExecutionSucceeded {
		t.Fatalf("state = %s, error = %+v", exec.State, exec.Error)
	}
	if exec.Output != "sum 5\n" {
		t.Errorf("output = %q", exec.Output)
	}
	if exec.Globals["Total"] != "5" {
		t.Errorf("globals = %v", exec.Globals)
	}

	code, body, _ := doRequest(t, srv, "GET", "/v1/scripts/args/executions", "")
	if code != 200 || !strings.Contains(body, id) {
		t.Errorf("list executions: %d %s", code, body)
	}
}

func TestExecutionFails(t *testing.T) {
	srv := newTestServer(t)
	deploy(t, srv, "crash", "print \"before\"\nX = 1 / 0\nprint \"after\"")

	exec := waitForState(t, srv, startExecution(t, srv, "crash", ""))
	if exec.State != store.ExecutionFailed {
		t.Fatalf("state = %s", exec.State)
	}
	if exec.Error == nil || exec.Error.Message != "DivisionByZero" || exec.Error.Line != 3 {
		t.Errorf("error = %+v", exec.Error)
	}
	if !strings.HasPrefix(exec.Output, "before\n") || slices.Contains(strings.Split(exec.Output, "\n"), "after") {
		t.Errorf("output = %q", exec.Output)
	}
}

func TestExecutionCancel(t *testing.T) {
	srv := newTestServer(t)
	deploy(t, srv, "forever", "start loop\n    wait 0.05 s\nkeep")

	id := startExecution(t, srv, "forever", "")
	code, body, _ := doRequest(t, srv, "POST", "/v1/executions/"+id+":cancel", "")
	if code != 200 || !strings.Contains(body, "CANCELLED") {
		t.Fatalf("cancel: %d %s", code, body)
	}
	if exec := waitForState(t, srv, id); exec.State != store.ExecutionCancelled {
		t.Errorf("state = %s", exec.State)
	}

	code, body, _ = doRequest(t, srv, "POST", "/v1/executions/"+id+":cancel", "")
	if code != 400 || !strings.Contains(body, "FAILED_PRECONDITION") {
		t.Errorf("second cancel: %d %s", code, body)
	}
}

func TestExecutionUnknownScript(t *testing.T) {
	srv := newTestServer(t)
	if code, _, _ := doRequest(t, srv, "POST", "/v1/scripts/missing/executions", ""); code != 404 {
		t.Errorf("status = %d", code)
	}
	if code, _, _ := doRequest(t, srv, "GET", "/v1/executions/missing", ""); code != 404 {
		t.Errorf("status = %d", code)
	}
}

func TestRunRequest(t *testing.T) {
	srv := newTestServer(t)
	deploy(t, srv, "echo", `take body & set as {B}
reset "lang" & set as {Lang}
reply with "got $B in $Lang via $RequestMethod"
reply point 201
reply note "X-Test" as "yes"`)

	code, body, header := doRequest(t, srv, "POST", "/run/echo?lang=go", "ping")
	if code != 201 {
		t.Errorf("status = %d", code)
	}
	if body != "got ping in go via POST" {
		t.Errorf("body = %q", body)
	}
	if got := header["X-Test"]; len(got) != 1 || got[0] != "yes" {
		t.Errorf("X-Test = %v", got)
	}
}

func TestRunRequestDefaultsToOutput(t *testing.T) {
	srv := newTestServer(t)
	deploy(t, srv, "plain", `print "just output"`)

	code, body, _ := doRequest(t, srv, "GET", "/run/plain", "")
	if code != 200 || body != "just output\n" {
		t.Errorf("got %d %q", code, body)
	}
}

func TestRunRequestHalt(t *testing.T) {
	srv := newTestServer(t)
	deploy(t, srv, "broken", "X = 1 / 0")

	code, body, _ := doRequest(t, srv, "GET", "/run/broken", "")
	if code != 500 || !strings.Contains(body, "DivisionByZero") {
		t.Errorf("got %d %s", code, body)
	}
}

func TestExecute(t *testing.T) {
	srv := newTestServer(t)
	deploy(t, srv, "sync", `print "done"`)

	exec, err := srv.Execute(context.Background(), "sync", nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if exec.State != store.ExecutionSucceeded || exec.Output != "done\n" {
		t.Errorf("exec = %+v", exec)
	}
	if _, err := srv.Execute(context.Background(), "nope", nil); err == nil {
		t.Error("expected error for unknown script")
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"good.big":     `print "good"`,
		"reserved.big": "Val = 1",
		"notes.txt":    "ignored",
		"9bad.big":     `print "bad name"`,
	}
	for name, src := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	srv := newTestServer(t)
	if err := srv.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	scripts := srv.Store().ListScripts()
	if len(scripts) != 1 || scripts[0].Name != "good" {
		t.Errorf("scripts = %+v", scripts)
	}
	if err := srv.LoadDir(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing dir")
	}
}

func TestWatchDir(t *testing.T) {
	dir := t.TempDir()
	srv := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.WatchDir(ctx, dir); err != nil {
		t.Fatalf("WatchDir: %v", err)
	}

	path := filepath.Join(dir, "live.big")
	if err := os.WriteFile(path, []byte(`print "v1"`), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		sc, err := srv.Store().GetScript("live")
		return err == nil && sc.Source == `print "v1"`
	})

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		_, err := srv.Store().GetScript("live")
		return err != nil
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestScriptName(t *testing.T) {
	tests := []struct {
		path, want string
	}{
		{"/a/hello.big", "hello"},
		{"hello-world.big", "hello-world"},
		{"/a/readme.md", ""},
		{"/a/.hidden.big", ""},
		{"/a/1st.big", ""},
	}
	for _, tt := range tests {
		if got := scriptName(tt.path); got != tt.want {
			t.Errorf("scriptName(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestDataDirBindsDir(t *testing.T) {
	srv := New(store.New(), Options{DataDir: "/srv/data"})
	deploy(t, srv, "where", `print "$Dir"`)

	exec, err := srv.Execute(context.Background(), "where", nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if exec.Output != "/srv/data\n" {
		t.Errorf("output = %q", exec.Output)
	}
}
