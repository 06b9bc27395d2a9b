package protoc

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/efebarandurmaz/protoforge/internal/build"
	"github.com/efebarandurmaz/protoforge/internal/plugins"
	"github.com/efebarandurmaz/protoforge/internal/toolchain"
	"github.com/google/go-cmp/cmp"
)

func newRule(t *testing.T, includes ...string) *Rule {
	t.Helper()
	r, err := NewRule(&toolchain.Location{Executable: "protoc", IncludePaths: includes}, Suffixes{})
	if err != nil {
		t.Fatalf("NewRule: %v", err)
	}
	return r
}

func newBuild(t *testing.T, r *Rule) *build.Build {
	t.Helper()
	reg := plugins.NewRegistry()
	if err := Register(reg, r); err != nil {
		t.Fatal(err)
	}
	return build.NewBuild(build.NewContext(".", "build"), reg)
}

func paths(nodes []build.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = filepath.ToSlash(n.Path())
	}
	return out
}

func TestHandle_WidgetsScenario(t *testing.T) {
	b := newBuild(t, newRule(t))
	gen, err := b.AddTarget(build.Target{Name: "widgets", Sources: []string{"widgets/shape.proto"}})
	if err != nil {
		t.Fatalf("AddTarget: %v", err)
	}

	tasks := gen.Tasks()
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	task := tasks[0]

	wantOuts := []string{"build/widgets/shape.pb.cc", "build/widgets/shape.pb.h", "build/widgets/shape_pb2.py"}
	if diff := cmp.Diff(wantOuts, paths(task.Outputs)); diff != "" {
		t.Errorf("outputs (-want +got):\n%s", diff)
	}

	dir := filepath.Join("build", "widgets")
	wantArgs := []string{"protoc", "-I" + dir, "--cpp_out=" + dir, "--python_out=" + dir, filepath.Join("widgets", "shape.proto")}
	if diff := cmp.Diff(wantArgs, task.Args); diff != "" {
		t.Errorf("args (-want +got):\n%s", diff)
	}
	if filepath.Separator == '/' {
		want := "protoc -Ibuild/widgets --cpp_out=build/widgets --python_out=build/widgets widgets/shape.proto"
		if got := task.CommandLine(); got != want {
			t.Errorf("command line = %q, want %q", got, want)
		}
	}

	if diff := cmp.Diff([]string{".proto"}, task.ExtIn); diff != "" {
		t.Errorf("ext_in (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{".pb.cc", ".pb.h", "_pb2.py"}, task.ExtOut); diff != "" {
		t.Errorf("ext_out (-want +got):\n%s", diff)
	}
	if task.Target != "widgets" || task.State != build.StatePending {
		t.Errorf("unexpected task: %+v", task)
	}

	if diff := cmp.Diff([]string{"build/widgets/shape.pb.cc"}, paths(gen.CompiledSources())); diff != "" {
		t.Errorf("compiled sources (-want +got):\n%s", diff)
	}
}

func TestHandle_SearchPaths(t *testing.T) {
	b := newBuild(t, newRule(t, "/usr/include", "third_party"))
	gen, err := b.AddTarget(build.Target{
		Name:     "api",
		Sources:  []string{"api/v1/user.proto"},
		Includes: []string{"third_party", "api"},
	})
	if err != nil {
		t.Fatal(err)
	}
	args := gen.Tasks()[0].Args
	var includes []string
	for _, a := range args {
		if strings.HasPrefix(a, "-I") {
			includes = append(includes, a)
		}
	}
	want := []string{"-Ithird_party", "-Iapi", "-I/usr/include", "-I" + filepath.Join("build", "api", "v1")}
	if diff := cmp.Diff(want, includes); diff != "" {
		t.Errorf("include flags (-want +got):\n%s", diff)
	}
}

func TestDeriveOutputs_Deterministic(t *testing.T) {
	ctx := build.NewContext("src", "out")
	inputs := []string{"widgets/shape.proto", "a.proto", "deep/nested/dir/x.y.proto", "noext"}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			src, err := ctx.Source(in)
			if err != nil {
				t.Fatal(err)
			}
			first := DeriveOutputs(ctx, src, DefaultSuffixes())
			second := DeriveOutputs(ctx, src, DefaultSuffixes())
			if first != second {
				t.Fatalf("outputs differ: %v vs %v", first, second)
			}

			seen := make(map[string]bool)
			for _, o := range first {
				if seen[o.Path()] {
					t.Errorf("duplicate output %s", o.Path())
				}
				seen[o.Path()] = true
				if o.Dir() != filepath.Join("out", filepath.Dir(src.Rel)) {
					t.Errorf("%s not mirrored into the output tree", o.Path())
				}
			}

			stem := strings.TrimSuffix(src.Name(), filepath.Ext(src.Name()))
			for i, suffix := range DefaultSuffixes().list() {
				if first[i].Name() != stem+suffix {
					t.Errorf("output %d = %s, want %s", i, first[i].Name(), stem+suffix)
				}
			}
		})
	}
}

func TestHandle_OneTaskPerInput(t *testing.T) {
	b := newBuild(t, newRule(t))
	gen, err := b.AddTarget(build.Target{
		Name:    "widgets",
		Sources: []string{"widgets/shape.proto", "widgets/color.proto", "widgets/shape.proto", "./widgets/shape.proto"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if n := len(gen.Tasks()); n != 2 {
		t.Fatalf("expected 2 tasks, got %d", n)
	}
	if _, err := gen.CreateTask("protoc", gen.Tasks()[0].Input(), nil); err == nil {
		t.Error("expected error creating a second task for the same input")
	}
}

func TestHandle_OutputConflictAcrossTargets(t *testing.T) {
	b := newBuild(t, newRule(t))
	if _, err := b.AddTarget(build.Target{Name: "a", Sources: []string{"shared/common.proto"}}); err != nil {
		t.Fatal(err)
	}
	_, err := b.AddTarget(build.Target{Name: "b", Sources: []string{"shared/common.proto"}})
	if !errors.Is(err, build.ErrOutputConflict) {
		t.Fatalf("expected ErrOutputConflict, got %v", err)
	}
}

func TestHandle_CustomSuffixes(t *testing.T) {
	r, err := NewRule(&toolchain.Location{Executable: "protoc"}, Suffixes{Source: ".pb.cpp", Header: ".pb.hpp", Script: "_pb.py"})
	if err != nil {
		t.Fatal(err)
	}
	b := newBuild(t, r)
	gen, err := b.AddTarget(build.Target{Name: "w", Sources: []string{"w/s.proto", "w/main.cpp"}})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"w/main.cpp", "build/w/s.pb.cpp"}
	if diff := cmp.Diff(want, paths(gen.CompiledSources())); diff != "" {
		t.Errorf("compiled sources (-want +got):\n%s", diff)
	}
}

func TestNewRule_Invalid(t *testing.T) {
	if _, err := NewRule(nil, Suffixes{}); err == nil {
		t.Error("expected error without a toolchain")
	}
	loc := &toolchain.Location{Executable: "protoc"}
	if _, err := NewRule(loc, Suffixes{Source: ".x", Header: ".x", Script: ".py"}); err == nil {
		t.Error("expected error for duplicate suffixes")
	}
	if _, err := NewRule(loc, Suffixes{Source: ".x"}); err == nil {
		t.Error("expected error for missing suffixes")
	}
	if _, err := NewRule(loc, Suffixes{Source: ".gen.proto", Header: ".pb.h", Script: "_pb2.py"}); err == nil {
		t.Error("expected error for a suffix ending in .proto")
	}
}

func TestRegister_Twice(t *testing.T) {
	reg := plugins.NewRegistry()
	r := newRule(t)
	if err := Register(reg, r); err != nil {
		t.Fatal(err)
	}
	if err := Register(reg, r); err == nil {
		t.Error("expected error registering .proto twice")
	}
}
