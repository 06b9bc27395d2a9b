package toolchain

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// fakeScript writes a pkg-config stand-in that answers for "protobuf" only.
func fakeScript(t *testing.T, prefix string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	script := `#!/bin/sh
for arg in "$@"; do pkg="$arg"; done
if [ "$pkg" != "protobuf" ]; then
  echo "Package $pkg was not found in the pkg-config search path." >&2
  exit 1
fi
case "$1" in
  --cflags) echo "-I/opt/pb/include -lprotobuf" ;;
  --variable=exec_prefix) echo "` + prefix + `" ;;
esac
`
	path := filepath.Join(t.TempDir(), "pkg-config")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExecPkgConfig(t *testing.T) {
	pc := ExecPkgConfig{Path: fakeScript(t, "/opt/pb")}
	ctx := context.Background()

	flags, err := pc.Flags(ctx, "protobuf")
	if err != nil {
		t.Fatalf("Flags: %v", err)
	}
	if diff := cmp.Diff([]string{"-I/opt/pb/include", "-lprotobuf"}, flags); diff != "" {
		t.Errorf("flags (-want +got):\n%s", diff)
	}

	prefix, err := pc.Variable(ctx, "protobuf", "exec_prefix")
	if err != nil {
		t.Fatalf("Variable: %v", err)
	}
	if prefix != "/opt/pb" {
		t.Errorf("exec_prefix = %q", prefix)
	}
}

func TestExecPkgConfig_UnknownPackage(t *testing.T) {
	pc := ExecPkgConfig{Path: fakeScript(t, "/opt/pb")}
	_, err := pc.Flags(context.Background(), "nosuchpkg")
	var qerr *QueryError
	if !errors.As(err, &qerr) {
		t.Fatalf("expected QueryError, got %v", err)
	}
	if qerr.Missing {
		t.Error("a failed query is not a missing pkg-config")
	}
	if qerr.Stderr == "" {
		t.Error("expected pkg-config stderr to be kept")
	}
}

func TestExecPkgConfig_BinaryMissing(t *testing.T) {
	pc := ExecPkgConfig{Path: filepath.Join(t.TempDir(), "pkg-config")}
	_, err := pc.Flags(context.Background(), "protobuf")
	var qerr *QueryError
	if !errors.As(err, &qerr) || !qerr.Missing {
		t.Fatalf("expected missing pkg-config, got %v", err)
	}
}

func TestLocate_WithExecPkgConfig(t *testing.T) {
	prefix := t.TempDir()
	exe := installProgram(t, prefix, "protoc")
	pc := ExecPkgConfig{Path: fakeScript(t, prefix)}

	loc, err := Locate(context.Background(), Options{PkgConfig: pc, Logger: quiet})
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if loc.Executable != exe {
		t.Errorf("Executable = %q, want %q", loc.Executable, exe)
	}

	_, err = Locate(context.Background(), Options{Package: "nosuchpkg", PkgConfig: pc, Logger: quiet})
	if !errors.Is(err, ErrToolchainNotFound) {
		t.Fatalf("expected ErrToolchainNotFound, got %v", err)
	}
}
