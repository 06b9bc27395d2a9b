package build

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// genHandler turns x.gen into x.out.c and x.out.h and feeds x.out.c back.
type genHandler struct {
	calls int
}

func (h *genHandler) Name() string         { return "gen" }
func (h *genHandler) Extensions() []string { return []string{".gen"} }

func (h *genHandler) Handle(gen *TaskGen, src Node) (*Task, error) {
	h.calls++
	c := gen.Context().ChangeExt(src, ".out.c")
	hdr := gen.Context().ChangeExt(src, ".out.h")
	task, err := gen.CreateTask("gen", src, []Node{c, hdr})
	if err != nil {
		return nil, err
	}
	task.Args = []string{"gen", src.Path()}
	gen.AppendSource(c)
	return task, nil
}

type suffixResolver map[string]Handler

func (r suffixResolver) Resolve(path string) (Handler, bool) {
	for suffix, h := range r {
		if strings.HasSuffix(path, suffix) {
			return h, true
		}
	}
	return nil, false
}

func newTestBuild(h Handler) *Build {
	return NewBuild(NewContext(".", "build"), suffixResolver{".gen": h})
}

func paths(nodes []Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = filepath.ToSlash(n.Path())
	}
	return out
}

func TestAddTarget_GeneratedSourceIsCompiled(t *testing.T) {
	h := &genHandler{}
	b := newTestBuild(h)

	gen, err := b.AddTarget(Target{Name: "app", Sources: []string{"src/a.gen", "src/main.c"}})
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"src/main.c", "build/src/a.out.c"}
	if diff := cmp.Diff(want, paths(gen.CompiledSources())); diff != "" {
		t.Errorf("compiled sources mismatch (-want +got):\n%s", diff)
	}
	if len(gen.Tasks()) != 1 {
		t.Fatalf("expected 1 task, got %d", len(gen.Tasks()))
	}
	task := gen.Tasks()[0]
	if task.State != StatePending || task.Target != "app" || task.ID == "" {
		t.Errorf("unexpected task: %+v", task)
	}
}

// loopHandler feeds back an output that matches its own extension.
type loopHandler struct{}

func (loopHandler) Name() string         { return "loop" }
func (loopHandler) Extensions() []string { return []string{".gen"} }

func (loopHandler) Handle(gen *TaskGen, src Node) (*Task, error) {
	out := gen.Context().ChangeExt(src, ".x.gen")
	task, err := gen.CreateTask("loop", src, []Node{out})
	if err != nil {
		return nil, err
	}
	gen.AppendSource(out)
	return task, nil
}

func TestAddTarget_GeneratedSourceNotRedispatched(t *testing.T) {
	b := NewBuild(NewContext(".", "build"), suffixResolver{".gen": loopHandler{}})

	gen, err := b.AddTarget(Target{Name: "app", Sources: []string{"src/a.gen"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(gen.Tasks()) != 1 {
		t.Fatalf("expected 1 task, got %d", len(gen.Tasks()))
	}
	if diff := cmp.Diff([]string{"build/src/a.x.gen"}, paths(gen.CompiledSources())); diff != "" {
		t.Errorf("compiled sources mismatch (-want +got):\n%s", diff)
	}
}

func TestAddTarget_DuplicateSourceOneTask(t *testing.T) {
	h := &genHandler{}
	b := newTestBuild(h)

	gen, err := b.AddTarget(Target{Name: "app", Sources: []string{"a.gen", "./a.gen", "a.gen"}})
	if err != nil {
		t.Fatal(err)
	}
	if h.calls != 1 {
		t.Errorf("handler called %d times, want 1", h.calls)
	}
	if len(gen.Tasks()) != 1 || len(b.Tasks()) != 1 {
		t.Errorf("expected exactly one task, got %d", len(b.Tasks()))
	}
}

func TestAddTarget_OutputConflictAcrossTargets(t *testing.T) {
	b := newTestBuild(&genHandler{})

	if _, err := b.AddTarget(Target{Name: "one", Sources: []string{"a.gen"}}); err != nil {
		t.Fatal(err)
	}
	_, err := b.AddTarget(Target{Name: "two", Sources: []string{"a.gen"}})
	if !errors.Is(err, ErrOutputConflict) {
		t.Fatalf("expected ErrOutputConflict, got %v", err)
	}
	if len(b.Tasks()) != 1 {
		t.Errorf("conflicting target must not add tasks, got %d", len(b.Tasks()))
	}
}

func TestAddTarget_Validation(t *testing.T) {
	b := newTestBuild(&genHandler{})
	if _, err := b.AddTarget(Target{}); err == nil {
		t.Error("expected error for unnamed target")
	}
	if _, err := b.AddTarget(Target{Name: "x", Sources: []string{"../up.gen"}}); err == nil {
		t.Error("expected error for source outside root")
	}
	if _, err := b.AddTarget(Target{Name: "y"}); err != nil {
		t.Fatal(err)
	}
	if _, err := b.AddTarget(Target{Name: "y"}); err == nil {
		t.Error("expected error for duplicate target name")
	}
}

func TestCreateTask_SecondTaskForInputFails(t *testing.T) {
	b := newTestBuild(&genHandler{})
	gen, err := b.AddTarget(Target{Name: "app", Sources: []string{"a.gen"}})
	if err != nil {
		t.Fatal(err)
	}
	src := gen.Tasks()[0].Input()
	if _, err := gen.CreateTask("again", src, nil); err == nil {
		t.Error("expected error creating a second task for the same input")
	}
}

func TestBuild_TaskGenLookup(t *testing.T) {
	b := newTestBuild(&genHandler{})
	if _, err := b.AddTarget(Target{Name: "app"}); err != nil {
		t.Fatal(err)
	}
	if _, ok := b.TaskGen("app"); !ok {
		t.Error("expected task generator for app")
	}
	if _, ok := b.TaskGen("missing"); ok {
		t.Error("unexpected task generator")
	}
	if len(b.TaskGens()) != 1 {
		t.Errorf("TaskGens() = %d", len(b.TaskGens()))
	}
}
