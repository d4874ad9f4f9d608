package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "hello.c")
	if err := os.WriteFile(input, []byte("#define GREETING \"hello\"\nputs(GREETING);\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if code := run([]string{input}, &stdout, &stderr); code != 0 {
		t.Fatalf("run: exit code %d, stderr: %s", code, stderr.String())
	}
	if got, want := stdout.String(), "\nputs(\"hello\");\n\n"; got != want {
		t.Errorf("got: %q; want: %q", got, want)
	}
}

func TestRunVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"--version"}, &stdout, &stderr); code != 0 {
		t.Fatalf("run: exit code %d", code)
	}
	if !strings.HasPrefix(stdout.String(), "mzcpp ") {
		t.Errorf("got: %q", stdout.String())
	}
}

func TestRunArgumentError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-q"}, &stdout, &stderr); code != 2 {
		t.Errorf("got exit code %d; want 2", code)
	}
	if got := stderr.String(); got != "ERROR: invalid argument '-q'\n" {
		t.Errorf("got: %q", got)
	}
}

func TestTerminal(t *testing.T) {
	if terminal(&bytes.Buffer{}) {
		t.Error("a buffer is not a terminal")
	}
	f, err := os.Create(filepath.Join(t.TempDir(), "log"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if terminal(f) {
		t.Error("a regular file is not a terminal")
	}
}
