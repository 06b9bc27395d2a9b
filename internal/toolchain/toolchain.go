// Package toolchain locates the protocol buffer code generator and its
// runtime library on the host.
//
// The probe asks pkg-config for the library's flags and installation
// prefix, then looks for the generator in <exec_prefix>/bin and nowhere
// else. It runs once, at configuration time; the resulting Location is
// read-only and shared by every generation task of the build.
package toolchain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/efebarandurmaz/protoforge/internal/observability"
)

const (
	DefaultPackage = "protobuf"
	DefaultProgram = "protoc"
)

// ErrToolchainNotFound matches every *NotFoundError.
var ErrToolchainNotFound = errors.New("toolchain not found")

// NotFoundError names the piece of the toolchain that could not be located.
type NotFoundError struct {
	// What is the missing package, variable or program.
	What string
	// Where describes where it was looked for.
	Where string
	Err   error
}

func (e *NotFoundError) Error() string {
	msg := "could not find " + e.What
	if e.Where != "" {
		msg += " in " + e.Where
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrToolchainNotFound
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// Location is the probed toolchain.
type Location struct {
	Package string `json:"package"`
	// Program is the generator name searched for under ExecPrefix.
	Program string `json:"program"`
	// PkgConfig is the pkg-config command Locate ran, when known.
	PkgConfig  string `json:"pkg_config,omitempty"`
	ExecPrefix string `json:"exec_prefix"`
	// Executable is the absolute path of the generator.
	Executable string `json:"executable"`
	// IncludePaths are the -I directories of the package's cflags, in order.
	IncludePaths []string `json:"include_paths"`
	// LibraryFlags are the remaining compile and link flags, in order.
	LibraryFlags []string `json:"library_flags"`
}

// Options controls Locate.
type Options struct {
	Package   string
	Program   string
	PkgConfig PkgConfig
	Logger    *slog.Logger
}

// Locate probes for the toolchain. A missing package, pkg-config binary,
// exec_prefix or program fails with ErrToolchainNotFound.
func Locate(ctx context.Context, opts Options) (*Location, error) {
	pkg := opts.Package
	if pkg == "" {
		pkg = DefaultPackage
	}
	prog := opts.Program
	if prog == "" {
		prog = DefaultProgram
	}
	pc := opts.PkgConfig
	if pc == nil {
		pc = ExecPkgConfig{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, span := observability.StartConfigureSpan(ctx, pkg)
	defer span.End()

	loc, err := locate(ctx, pkg, prog, pc, logger)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	observability.RecordConfigureResult(span, loc.Executable, len(loc.IncludePaths))
	return loc, nil
}

func locate(ctx context.Context, pkg, prog string, pc PkgConfig, logger *slog.Logger) (*Location, error) {
	logger.Info("checking for " + pkg)
	flags, err := pc.Flags(ctx, pkg)
	if err != nil {
		return nil, notFound(pkg, err)
	}
	loc := &Location{Package: pkg, Program: prog}
	loc.IncludePaths, loc.LibraryFlags = splitFlags(flags)

	logger.Info("checking for " + pkg + " exec_prefix")
	prefix, err := pc.Variable(ctx, pkg, "exec_prefix")
	if err != nil {
		return nil, notFound(pkg, err)
	}
	if prefix == "" {
		return nil, &NotFoundError{What: pkg + " exec_prefix", Where: "pkg-config"}
	}
	loc.ExecPrefix = prefix

	binDir := filepath.Join(prefix, "bin")
	logger.Info("checking for program "+prog, "dir", binDir)
	exe, err := findProgram(binDir, prog)
	if err != nil {
		return nil, err
	}
	loc.Executable = exe

	logger.Info("found toolchain", "executable", exe, "include_paths", loc.IncludePaths)
	return loc, nil
}

func notFound(pkg string, err error) error {
	var qerr *QueryError
	if errors.As(err, &qerr) && qerr.Missing {
		return &NotFoundError{What: "pkg-config", Err: err}
	}
	return &NotFoundError{What: "package " + pkg, Where: "pkg-config", Err: err}
}

// findProgram looks for prog in dir only.
func findProgram(dir, prog string) (string, error) {
	name := prog
	if runtime.GOOS == "windows" && filepath.Ext(name) == "" {
		name += ".exe"
	}
	path := filepath.Join(dir, name)
	info, err := os.Stat(path)
	if err != nil {
		return "", &NotFoundError{What: "program " + prog, Where: dir, Err: err}
	}
	if !info.Mode().IsRegular() || (runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0) {
		return "", &NotFoundError{What: "program " + prog, Where: dir, Err: fmt.Errorf("%s is not an executable file", path)}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	return abs, nil
}

// splitFlags separates -I directories from the other flags. Duplicate
// include directories keep their first position.
func splitFlags(flags []string) (includes, rest []string) {
	seen := make(map[string]bool)
	for i := 0; i < len(flags); i++ {
		f := flags[i]
		var dir string
		switch {
		case f == "-I" && i+1 < len(flags):
			i++
			dir = flags[i]
		case strings.HasPrefix(f, "-I") && len(f) > 2:
			dir = f[2:]
		default:
			rest = append(rest, f)
			continue
		}
		if !seen[dir] {
			seen[dir] = true
			includes = append(includes, dir)
		}
	}
	return includes, rest
}
