package integration

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// These tests need the server started with a watched directory:
//
//	bigrun serve --scripts-dir=./scripts --watch
//
// and BIGRUN_SCRIPTS_DIR pointing at the same directory.

func skipIfNoWatchedDir(t *testing.T) string {
	t.Helper()
	dir := os.Getenv("BIGRUN_SCRIPTS_DIR")
	if dir == "" {
		t.Skip("BIGRUN_SCRIPTS_DIR not set; skipping directory watch test")
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Fatalf("BIGRUN_SCRIPTS_DIR %q does not exist", dir)
	}
	return dir
}

func waitForScript(t *testing.T, name string, present bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		code, _ := doJSON(t, "GET", apiURL("scripts/"+name), nil)
		if (code == http.StatusOK) == present {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("script %s present=%v not observed", name, present)
}

func TestWatchedDirDeploysAndRemoves(t *testing.T) {
	dir := skipIfNoWatchedDir(t)
	name := uniqueID("watched")
	path := filepath.Join(dir, name+".big")

	if err := os.WriteFile(path, []byte(`print "from disk"`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Cleanup(func() { os.Remove(path) })
	waitForScript(t, name, true)

	er := waitForExecution(t, startExecution(t, name, nil).ID, 10*time.Second)
	assertSucceeded(t, er)
	assertOutput(t, er, "from disk\n")

	if err := os.WriteFile(path, []byte(`print "edited"`), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		er = waitForExecution(t, startExecution(t, name, nil).ID, 10*time.Second)
		if er.Output == "edited\n" {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	assertOutput(t, er, "edited\n")

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	waitForScript(t, name, false)
}

func TestWatchedDirIgnoresInvalidFiles(t *testing.T) {
	dir := skipIfNoWatchedDir(t)
	name := uniqueID("reserved")
	path := filepath.Join(dir, name+".big")

	if err := os.WriteFile(path, []byte("Val = 1"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Cleanup(func() { os.Remove(path) })

	time.Sleep(500 * time.Millisecond)
	if code, _ := doJSON(t, "GET", apiURL("scripts/"+name), nil); code != http.StatusNotFound {
		t.Errorf("reserved-name script was deployed: status %d", code)
	}
}
