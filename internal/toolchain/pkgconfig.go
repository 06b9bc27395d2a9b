package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// PkgConfig answers package-metadata queries.
type PkgConfig interface {
	// Flags returns the compile and link flags of pkg.
	Flags(ctx context.Context, pkg string) ([]string, error)
	// Variable returns the value of a variable defined by pkg.
	Variable(ctx context.Context, pkg, name string) (string, error)
}

// QueryError is returned by ExecPkgConfig when the query could not be
// answered. Missing reports that the pkg-config binary itself is absent.
type QueryError struct {
	Args    []string
	Missing bool
	Stderr  string
	Err     error
}

func (e *QueryError) Error() string {
	msg := fmt.Sprintf("%s: %v", strings.Join(e.Args, " "), e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// ExecPkgConfig queries the pkg-config program.
type ExecPkgConfig struct {
	// Path is the pkg-config executable; empty means "pkg-config" on PATH.
	Path string
}

// Flags runs `pkg-config --cflags --libs pkg`.
func (p ExecPkgConfig) Flags(ctx context.Context, pkg string) ([]string, error) {
	out, err := p.run(ctx, "--cflags", "--libs", pkg)
	if err != nil {
		return nil, err
	}
	return strings.Fields(out), nil
}

// Variable runs `pkg-config --variable=name pkg`.
func (p ExecPkgConfig) Variable(ctx context.Context, pkg, name string) (string, error) {
	out, err := p.run(ctx, "--variable="+name, pkg)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (p ExecPkgConfig) run(ctx context.Context, args ...string) (string, error) {
	bin := p.Path
	if bin == "" {
		bin = "pkg-config"
	}
	argv := append([]string{bin}, args...)

	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		qerr := &QueryError{Args: argv, Stderr: stderr.String(), Err: err}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			qerr.Missing = true
		}
		return "", qerr
	}
	return stdout.String(), nil
}
