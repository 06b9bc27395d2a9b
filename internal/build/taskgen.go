package build

import (
	"fmt"

	"github.com/google/uuid"
)

// Target is a named group of sources from the build description.
type Target struct {
	Name     string
	Sources  []string
	Includes []string
}

// Handler turns one source node into a task. Handlers are looked up by
// file suffix.
type Handler interface {
	// Name identifies the handler in logs and errors.
	Name() string
	// Extensions lists the suffixes the handler consumes (e.g. ".proto").
	Extensions() []string
	// Handle creates the task for src through gen.
	Handle(gen *TaskGen, src Node) (*Task, error)
}

// Resolver finds the handler for a source path.
type Resolver interface {
	Resolve(path string) (Handler, bool)
}

// Build collects the task generators of every target in one build and
// owns the table of declared outputs.
type Build struct {
	Context *Context

	resolver Resolver
	gens     []*TaskGen
	byName   map[string]*TaskGen
	tasks    []*Task
	claims   map[string]*Task
	newID    func() string
}

// NewBuild creates an empty build.
func NewBuild(ctx *Context, r Resolver) *Build {
	return &Build{
		Context:  ctx,
		resolver: r,
		byName:   make(map[string]*TaskGen),
		claims:   make(map[string]*Task),
		newID:    uuid.NewString,
	}
}

// AddTarget creates the task generator for t and processes its sources.
func (b *Build) AddTarget(t Target) (*TaskGen, error) {
	if t.Name == "" {
		return nil, fmt.Errorf("target has no name")
	}
	if _, exists := b.byName[t.Name]; exists {
		return nil, fmt.Errorf("target %q defined twice", t.Name)
	}

	gen := &TaskGen{
		Target:  t,
		build:   b,
		seen:    make(map[string]bool),
		byInput: make(map[string]*Task),
	}
	for _, s := range t.Sources {
		n, err := b.Context.Source(s)
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", t.Name, err)
		}
		gen.AppendSource(n)
	}
	if err := gen.process(); err != nil {
		return nil, err
	}

	b.gens = append(b.gens, gen)
	b.byName[t.Name] = gen
	return gen, nil
}

// Tasks returns every task of the build in creation order.
func (b *Build) Tasks() []*Task {
	return b.tasks
}

// TaskGens returns the task generators in the order targets were added.
func (b *Build) TaskGens() []*TaskGen {
	return b.gens
}

// TaskGen returns the generator of the named target.
func (b *Build) TaskGen(name string) (*TaskGen, bool) {
	g, ok := b.byName[name]
	return g, ok
}

// TaskGen processes the sources of a single target. Handlers use it to
// create tasks and to feed generated files back into the target.
type TaskGen struct {
	Target Target

	build    *Build
	queue    []Node
	seen     map[string]bool
	byInput  map[string]*Task
	tasks    []*Task
	compiled []Node
}

// Context returns the build context.
func (g *TaskGen) Context() *Context {
	return g.build.Context
}

// AppendSource queues n for processing. A node already queued for this
// target is ignored.
func (g *TaskGen) AppendSource(n Node) {
	key := n.Path()
	if g.seen[key] {
		return
	}
	g.seen[key] = true
	g.queue = append(g.queue, n)
}

// CreateTask registers a task producing outs from in. Only one task may
// exist per input, and no two tasks in the build may declare the same output.
func (g *TaskGen) CreateTask(name string, in Node, outs []Node) (*Task, error) {
	key := in.Path()
	if prev, ok := g.byInput[key]; ok {
		return nil, fmt.Errorf("target %s: %s already has task %s", g.Target.Name, key, prev.ID)
	}
	task := &Task{
		ID:      g.build.newID(),
		Name:    name,
		Target:  g.Target.Name,
		Inputs:  []Node{in},
		Outputs: outs,
		State:   StatePending,
	}
	for _, o := range outs {
		if owner, ok := g.build.claims[o.Path()]; ok {
			return nil, fmt.Errorf("%w: %s (targets %s and %s)", ErrOutputConflict, o.Path(), owner.Target, g.Target.Name)
		}
	}
	for _, o := range outs {
		g.build.claims[o.Path()] = task
	}

	g.byInput[key] = task
	g.tasks = append(g.tasks, task)
	g.build.tasks = append(g.build.tasks, task)
	return task, nil
}

// Tasks returns the tasks created for this target.
func (g *TaskGen) Tasks() []*Task {
	return g.tasks
}

// CompiledSources returns the nodes no handler claimed; they are compiled
// as part of the target. Generated sources appended by handlers end up here.
func (g *TaskGen) CompiledSources() []Node {
	return g.compiled
}

func (g *TaskGen) process() error {
	for len(g.queue) > 0 {
		n := g.queue[0]
		g.queue = g.queue[1:]

		// Generated files are compiled, never handed back to a rule.
		if g.isGenerated(n) {
			g.compiled = append(g.compiled, n)
			continue
		}
		h, ok := g.build.resolver.Resolve(n.Rel)
		if !ok {
			g.compiled = append(g.compiled, n)
			continue
		}
		if _, err := h.Handle(g, n); err != nil {
			return fmt.Errorf("target %s: %s: %w", g.Target.Name, h.Name(), err)
		}
	}
	return nil
}

func (g *TaskGen) isGenerated(n Node) bool {
	c := g.build.Context
	return c.OutDir != c.SrcRoot && n.Root == c.OutDir
}
