//go:build !windows

package monitor

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestLauncherStreamsOutputAndExitCode(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "tab_monitor.sh")
	body := `printf '{"url":"https://a.example/","active":true}\n'
echo "warn: $PYTHONUNBUFFERED $TABSENTRY_DEVTOOLS_URL" >&2
exit 3
`
	if err := os.WriteFile(script, []byte(body), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	var (
		mu   sync.Mutex
		out  bytes.Buffer
		errb bytes.Buffer
		code = -100
	)
	l := &Launcher{
		BinDir:      filepath.Join(dir, "bin"),
		ScriptPath:  script,
		Interpreter: "sh",
		DevToolsURL: "http://127.0.0.1:9222",
		GOOS:        "linux",
	}
	h, err := l.Start(Hooks{
		Stdout: func(b []byte) { mu.Lock(); out.Write(b); mu.Unlock() },
		Stderr: func(b []byte) { mu.Lock(); errb.Write(b); mu.Unlock() },
		Exit:   func(c int, _ error) { mu.Lock(); code = c; mu.Unlock() },
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-h.Done():
	case <-time.After(10 * time.Second):
		t.Fatalf("process did not exit")
	}

	mu.Lock()
	defer mu.Unlock()
	if code != 3 {
		t.Fatalf("exit code = %d, want 3", code)
	}
	if !strings.Contains(out.String(), `"url":"https://a.example/"`) {
		t.Fatalf("stdout = %q", out.String())
	}
	if !strings.Contains(errb.String(), "1 http://127.0.0.1:9222") {
		t.Fatalf("env not passed, stderr = %q", errb.String())
	}
}

func TestProcessStopTerminates(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "sleep.sh")
	if err := os.WriteFile(script, []byte("sleep 30\n"), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	l := &Launcher{BinDir: dir, ScriptPath: script, Interpreter: "sh", GOOS: "linux", Grace: 200 * time.Millisecond}
	h, err := l.Start(Hooks{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.Stop()
	select {
	case <-h.Done():
	case <-time.After(10 * time.Second):
		t.Fatalf("process not terminated")
	}
}
