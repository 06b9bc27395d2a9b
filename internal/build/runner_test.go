package build

import (
	"context"
	"runtime"
	"testing"
	"time"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestExecRunner_Success(t *testing.T) {
	skipOnWindows(t)
	r := NewExecRunner(RunnerConfig{})
	res, err := r.Run(context.Background(), []string{"sh", "-c", "echo out; echo err >&2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 0 || string(res.Stdout) != "out\n" || string(res.Stderr) != "err\n" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestExecRunner_NonZeroExitIsNotAnError(t *testing.T) {
	skipOnWindows(t)
	r := NewExecRunner(RunnerConfig{})
	res, err := r.Run(context.Background(), []string{"sh", "-c", "printf 'bad input' >&2; exit 3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 3 || string(res.Stderr) != "bad input" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestExecRunner_EnvAndDir(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	r := NewExecRunner(RunnerConfig{Dir: dir, Env: map[string]string{"PROTOFORGE_TEST": "yes"}})
	res, err := r.Run(context.Background(), []string{"sh", "-c", `printf '%s' "$PROTOFORGE_TEST"`})
	if err != nil {
		t.Fatal(err)
	}
	if string(res.Stdout) != "yes" {
		t.Errorf("stdout = %q", res.Stdout)
	}
}

func TestExecRunner_MissingExecutable(t *testing.T) {
	r := NewExecRunner(RunnerConfig{})
	if _, err := r.Run(context.Background(), []string{"protoforge-does-not-exist"}); err == nil {
		t.Error("expected error for missing executable")
	}
}

func TestExecRunner_Timeout(t *testing.T) {
	skipOnWindows(t)
	r := NewExecRunner(RunnerConfig{Timeout: 50 * time.Millisecond})
	if _, err := r.Run(context.Background(), []string{"sh", "-c", "exec sleep 5"}); err == nil {
		t.Error("expected timeout error")
	}
}

func TestExecRunner_EmptyCommand(t *testing.T) {
	if _, err := NewExecRunner(RunnerConfig{}).Run(context.Background(), nil); err == nil {
		t.Error("expected error for empty command")
	}
}
