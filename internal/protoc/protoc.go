// Package protoc is the generation rule for .proto files. For every
// interface definition a target lists, it declares the generated C++
// source and header and the Python module, creates the task that runs
// protoc, and feeds the generated C++ source back into the target.
package protoc

import (
	"fmt"
	"strings"

	"github.com/efebarandurmaz/protoforge/internal/build"
	"github.com/efebarandurmaz/protoforge/internal/toolchain"
)

// Extension is the suffix the rule is registered for.
const Extension = ".proto"

// Suffixes are the names protoc gives its outputs, replacing the
// input's extension.
type Suffixes struct {
	Source string `mapstructure:"source" json:"source"`
	Header string `mapstructure:"header" json:"header"`
	Script string `mapstructure:"script" json:"script"`
}

// DefaultSuffixes follow protoc's --cpp_out and --python_out naming.
func DefaultSuffixes() Suffixes {
	return Suffixes{Source: ".pb.cc", Header: ".pb.h", Script: "_pb2.py"}
}

// Validate checks that the suffixes are set, pairwise distinct, and do
// not name another interface definition.
func (s Suffixes) Validate() error {
	if s.Source == "" || s.Header == "" || s.Script == "" {
		return fmt.Errorf("suffixes must all be set: %+v", s)
	}
	if s.Source == s.Header || s.Source == s.Script || s.Header == s.Script {
		return fmt.Errorf("suffixes must be distinct: %+v", s)
	}
	for _, suffix := range s.list() {
		if strings.HasSuffix(suffix, Extension) {
			return fmt.Errorf("suffix %q must not end in %s", suffix, Extension)
		}
	}
	return nil
}

func (s Suffixes) list() []string {
	return []string{s.Source, s.Header, s.Script}
}

// Request is everything needed to generate code for one input.
type Request struct {
	Source build.Node
	// Outputs holds the generated source, header and script, in that order.
	Outputs [3]build.Node
	// SearchPaths are the include directories passed before the
	// source's own directory.
	SearchPaths []string
}

// Rule creates generation tasks using a probed toolchain.
type Rule struct {
	Loc      *toolchain.Location
	Suffixes Suffixes
}

// NewRule returns a rule for loc. Zero suffixes mean DefaultSuffixes.
func NewRule(loc *toolchain.Location, s Suffixes) (*Rule, error) {
	if loc == nil || loc.Executable == "" {
		return nil, fmt.Errorf("protoc rule needs a located toolchain")
	}
	if s == (Suffixes{}) {
		s = DefaultSuffixes()
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &Rule{Loc: loc, Suffixes: s}, nil
}

// DeriveOutputs maps src to its three outputs in the mirrored output tree.
// The result depends on nothing but src, ctx and s.
func DeriveOutputs(ctx *build.Context, src build.Node, s Suffixes) [3]build.Node {
	return [3]build.Node{
		ctx.ChangeExt(src, s.Source),
		ctx.ChangeExt(src, s.Header),
		ctx.ChangeExt(src, s.Script),
	}
}

// NewRequest builds the request for src within a target.
func (r *Rule) NewRequest(ctx *build.Context, src build.Node, includes []string) Request {
	return Request{
		Source:      src,
		Outputs:     DeriveOutputs(ctx, src, r.Suffixes),
		SearchPaths: mergePaths(includes, r.Loc.IncludePaths),
	}
}

// Args returns the protoc argument vector for req:
//
//	protoc -I<search path>... -I<source bld dir> --cpp_out=<dir> --python_out=<dir> <source>
func (r *Rule) Args(ctx *build.Context, req Request) []string {
	outDir := req.Outputs[0].Dir()
	args := make([]string, 0, len(req.SearchPaths)+5)
	args = append(args, r.Loc.Executable)
	for _, p := range req.SearchPaths {
		args = append(args, "-I"+p)
	}
	return append(args,
		"-I"+ctx.BldDir(req.Source),
		"--cpp_out="+outDir,
		"--python_out="+outDir,
		req.Source.Path(),
	)
}

// Name implements build.Handler.
func (r *Rule) Name() string { return "protoc" }

// Extensions implements build.Handler.
func (r *Rule) Extensions() []string { return []string{Extension} }

// Handle creates the generation task for src and appends the generated
// C++ source to the target so it is compiled with it.
func (r *Rule) Handle(gen *build.TaskGen, src build.Node) (*build.Task, error) {
	ctx := gen.Context()
	req := r.NewRequest(ctx, src, gen.Target.Includes)

	task, err := gen.CreateTask("protoc", src, req.Outputs[:])
	if err != nil {
		return nil, err
	}
	task.ExtIn = []string{Extension}
	task.ExtOut = r.Suffixes.list()
	task.Args = r.Args(ctx, req)

	gen.AppendSource(req.Outputs[0])
	return task, nil
}

// Registry is the part of the extension registry the rule needs.
type Registry interface {
	Register(h build.Handler) error
}

// Register binds r to .proto files.
func Register(reg Registry, r *Rule) error {
	if err := reg.Register(r); err != nil {
		return fmt.Errorf("registering protoc rule: %w", err)
	}
	return nil
}

// mergePaths concatenates the lists, dropping empty and repeated entries.
func mergePaths(lists ...[]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, l := range lists {
		for _, p := range l {
			if p == "" || seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

var _ build.Handler = (*Rule)(nil)
