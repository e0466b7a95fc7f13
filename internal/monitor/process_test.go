package monitor

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func noInterpreter(string) (string, error) { return "", errors.New("not found") }

func TestResolvePrefersPlatformBinary(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"windows": "tab-monitor-win.exe",
		"darwin":  "tab-monitor-mac",
		"linux":   "tab-monitor-linux",
	}
	for goos, name := range cases {
		touch(t, filepath.Join(dir, name))
		l := &Launcher{BinDir: dir, GOOS: goos, LookPath: noInterpreter}
		c, err := l.Resolve()
		if err != nil {
			t.Fatalf("%s: Resolve: %v", goos, err)
		}
		if c.Path != filepath.Join(dir, name) || len(c.Args) != 0 {
			t.Fatalf("%s: unexpected command %+v", goos, c)
		}
	}
}

func TestResolveFallsBackToInterpreter(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "tab_monitor.py")
	touch(t, script)

	var asked []string
	l := &Launcher{
		BinDir:     filepath.Join(dir, "bin"),
		ScriptPath: script,
		GOOS:       "linux",
		LookPath: func(name string) (string, error) {
			asked = append(asked, name)
			if name == "python" {
				return "/usr/bin/python", nil
			}
			return "", errors.New("missing")
		},
	}
	c, err := l.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if c.Path != "/usr/bin/python" || len(c.Args) != 1 || c.Args[0] != script {
		t.Fatalf("unexpected command %+v", c)
	}
	if len(asked) != 2 || asked[0] != "python3" {
		t.Fatalf("interpreter lookup order = %v", asked)
	}
}

func TestResolveErrors(t *testing.T) {
	l := &Launcher{GOOS: "plan9"}
	if _, err := l.Resolve(); !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("expected ErrUnsupportedPlatform, got %v", err)
	}

	dir := t.TempDir()
	l = &Launcher{BinDir: dir, ScriptPath: filepath.Join(dir, "missing.py"), GOOS: "linux", LookPath: noInterpreter}
	if _, err := l.Resolve(); !errors.Is(err, ErrExecutableNotFound) {
		t.Fatalf("expected ErrExecutableNotFound, got %v", err)
	}

	script := filepath.Join(dir, "tab_monitor.py")
	touch(t, script)
	l.ScriptPath = script
	if _, err := l.Resolve(); !errors.Is(err, ErrExecutableNotFound) {
		t.Fatalf("expected ErrExecutableNotFound without interpreter, got %v", err)
	}
}

func TestMakefileBuildsPlatformBinaries(t *testing.T) {
	b, err := os.ReadFile(filepath.Join("..", "..", "Makefile"))
	if err != nil {
		t.Fatalf("read Makefile: %v", err)
	}
	mk := string(b)
	for _, goos := range []string{"windows", "darwin", "linux"} {
		name, err := binaryName(goos)
		if err != nil {
			t.Fatalf("%s: %v", goos, err)
		}
		if !strings.Contains(mk, "$(BIN_DIR)/"+name+" ./cmd/tabwatch") {
			t.Fatalf("Makefile does not build %s from cmd/tabwatch", name)
		}
	}
}
