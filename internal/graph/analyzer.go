package graph

import (
	"path/filepath"
	"strings"

	"github.com/efebarandurmaz/protoforge/internal/build"
)

// TargetID, FileID and TaskID build node identifiers.
func TargetID(name string) string { return "target:" + name }
func FileID(path string) string   { return "file:" + filepath.ToSlash(path) }
func TaskID(t *build.Task) string { return "task:" + t.ID }

// FromBuild constructs the build graph of a planned build.
func FromBuild(b *build.Build) *Graph {
	g := &Graph{}
	index := make(map[string]int)

	add := func(n Node) {
		if i, ok := index[n.ID]; ok {
			// A file produced by a task is an artifact even if it was
			// first seen as a source.
			if n.Kind == NodeArtifact {
				g.Nodes[i].Kind = NodeArtifact
			}
			return
		}
		index[n.ID] = len(g.Nodes)
		g.Nodes = append(g.Nodes, n)
	}
	file := func(n build.Node, kind NodeKind, target string) string {
		id := FileID(n.Path())
		add(Node{ID: id, Name: filepath.ToSlash(n.Path()), Kind: kind, Target: target})
		return id
	}

	for _, gen := range b.TaskGens() {
		name := gen.Target.Name
		tid := TargetID(name)
		add(Node{ID: tid, Name: name, Kind: NodeTarget, Target: name})

		listed := make(map[string]bool)
		for _, s := range gen.Target.Sources {
			n, err := b.Context.Source(s)
			if err != nil || listed[n.Path()] {
				continue
			}
			listed[n.Path()] = true
			fid := file(n, NodeSource, name)
			g.Edges = append(g.Edges, Edge{From: tid, To: fid, Kind: EdgeHasSource})
		}

		for _, t := range gen.Tasks() {
			id := TaskID(t)
			add(Node{
				ID:     id,
				Name:   t.Name + " " + filepath.ToSlash(t.Input().Path()),
				Kind:   NodeTask,
				Target: name,
				Metadata: map[string]string{
					"args":    strings.Join(t.Args, " "),
					"ext_in":  strings.Join(t.ExtIn, ","),
					"ext_out": strings.Join(t.ExtOut, ","),
					"state":   string(t.State),
				},
			})
			for _, in := range t.Inputs {
				g.Edges = append(g.Edges, Edge{From: id, To: FileID(in.Path()), Kind: EdgeConsumes})
			}
			for _, out := range t.Outputs {
				fid := file(out, NodeArtifact, name)
				g.Edges = append(g.Edges, Edge{From: id, To: fid, Kind: EdgeProduces})
			}
		}

		for _, c := range gen.CompiledSources() {
			fid := file(c, NodeSource, name)
			g.Edges = append(g.Edges, Edge{From: tid, To: fid, Kind: EdgeCompiles})
		}
	}

	g.Stats = computeStats(g)
	return g
}

// RefreshStats recomputes Stats, for graphs assembled outside FromBuild.
func (g *Graph) RefreshStats() {
	g.Stats = computeStats(g)
}

func computeStats(g *Graph) GraphStats {
	s := GraphStats{TotalNodes: len(g.Nodes), TotalEdges: len(g.Edges)}
	for _, n := range g.Nodes {
		switch n.Kind {
		case NodeTarget:
			s.TargetCount++
		case NodeSource:
			s.SourceCount++
		case NodeTask:
			s.TaskCount++
		case NodeArtifact:
			s.ArtifactCount++
		}
	}
	for _, e := range g.Edges {
		if e.Kind == EdgeCompiles {
			s.CompiledCount++
		}
	}
	return s
}

// Producers returns the IDs of the tasks that produce the file at path.
func (g *Graph) Producers(path string) []string {
	id := FileID(path)
	var out []string
	for _, e := range g.Edges {
		if e.Kind == EdgeProduces && e.To == id {
			out = append(out, e.From)
		}
	}
	return out
}
