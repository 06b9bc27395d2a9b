package graph

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/efebarandurmaz/protoforge/internal/build"
	"github.com/efebarandurmaz/protoforge/internal/plugins"
	"github.com/efebarandurmaz/protoforge/internal/protoc"
	"github.com/efebarandurmaz/protoforge/internal/toolchain"
)

func widgetsBuild(t *testing.T) *build.Build {
	t.Helper()
	rule, err := protoc.NewRule(&toolchain.Location{Executable: "protoc"}, protoc.Suffixes{})
	if err != nil {
		t.Fatal(err)
	}
	reg := plugins.NewRegistry()
	if err := protoc.Register(reg, rule); err != nil {
		t.Fatal(err)
	}
	b := build.NewBuild(build.NewContext(".", "build"), reg)
	if _, err := b.AddTarget(build.Target{Name: "widgets", Sources: []string{"widgets/shape.proto", "widgets/main.cc"}}); err != nil {
		t.Fatal(err)
	}
	return b
}

func countEdges(g *Graph, kind EdgeKind) int {
	n := 0
	for _, e := range g.Edges {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func TestFromBuild(t *testing.T) {
	b := widgetsBuild(t)
	g := FromBuild(b)

	want := GraphStats{
		TotalNodes:    7, // target, 2 sources, task, 3 artifacts
		TotalEdges:    8, // 2 has_source, 1 consumes, 3 produces, 2 compiles
		TargetCount:   1,
		SourceCount:   2,
		TaskCount:     1,
		ArtifactCount: 3,
		CompiledCount: 2,
	}
	if g.Stats != want {
		t.Errorf("stats = %+v, want %+v", g.Stats, want)
	}

	n, ok := g.Node(FileID("build/widgets/shape.pb.cc"))
	if !ok || n.Kind != NodeArtifact {
		t.Errorf("generated source should be an artifact node, got %+v", n)
	}

	task := b.Tasks()[0]
	producers := g.Producers("build/widgets/shape.pb.h")
	if len(producers) != 1 || producers[0] != TaskID(task) {
		t.Errorf("producers = %v", producers)
	}
	tn, _ := g.Node(TaskID(task))
	if tn.Metadata["ext_in"] != ".proto" || tn.Metadata["state"] != "pending" {
		t.Errorf("unexpected task metadata: %v", tn.Metadata)
	}
	if countEdges(g, EdgeConsumes) != 1 {
		t.Errorf("expected one consumes edge")
	}
}

func TestExportDOT(t *testing.T) {
	dot := ExportDOT(FromBuild(widgetsBuild(t)))
	for _, want := range []string{
		"digraph build {",
		"subgraph cluster_widgets",
		`"file:widgets/shape.proto" [label="widgets/shape.proto" shape=note`,
		`"file:build/widgets/shape_pb2.py" [label="build/widgets/shape_pb2.py" shape=folder`,
		`-> "file:build/widgets/shape.pb.cc" [style=bold`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT output missing %q:\n%s", want, dot)
		}
	}
}

func TestExportMermaid(t *testing.T) {
	m := ExportMermaid(FromBuild(widgetsBuild(t)))
	for _, want := range []string{
		"graph LR\n",
		"  subgraph widgets\n",
		`target_widgets[["widgets"]]`,
		`file_widgets_shape_proto(["widgets/shape.proto"])`,
		"target_widgets -..-> file_build_widgets_shape_pb_cc",
	} {
		if !strings.Contains(m, want) {
			t.Errorf("Mermaid output missing %q:\n%s", want, m)
		}
	}
}

func TestExportJSON(t *testing.T) {
	data, err := ExportJSON(FromBuild(widgetsBuild(t)))
	if err != nil {
		t.Fatal(err)
	}
	var decoded Graph
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(decoded.Nodes) != 7 || decoded.Stats.ArtifactCount != 3 {
		t.Errorf("unexpected decoded graph: %+v", decoded.Stats)
	}
}

func TestFormatStats(t *testing.T) {
	s := FormatStats(FromBuild(widgetsBuild(t)))
	if !strings.Contains(s, "Artifacts: 3") || !strings.Contains(s, "Compiled:    2") {
		t.Errorf("unexpected stats:\n%s", s)
	}
}

func TestSanitizeID(t *testing.T) {
	if got := sanitizeID("file:build/a-b.pb.cc"); got != "file_build_a_b_pb_cc" {
		t.Errorf("sanitizeID = %q", got)
	}
}
