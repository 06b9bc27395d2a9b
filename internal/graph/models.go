package graph

// Node represents a node in the build graph
type Node struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Kind     NodeKind          `json:"kind"`   // target, source, task, artifact
	Target   string            `json:"target"` // owning target name
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NodeKind classifies graph nodes
type NodeKind string

const (
	NodeTarget   NodeKind = "target"
	NodeSource   NodeKind = "source"
	NodeTask     NodeKind = "task"
	NodeArtifact NodeKind = "artifact"
)

// Edge represents a directed edge between two nodes
type Edge struct {
	From  string   `json:"from"`
	To    string   `json:"to"`
	Kind  EdgeKind `json:"kind"`
	Label string   `json:"label,omitempty"`
}

// EdgeKind classifies relationships
type EdgeKind string

const (
	EdgeHasSource EdgeKind = "has_source" // target lists source
	EdgeConsumes  EdgeKind = "consumes"   // task reads file
	EdgeProduces  EdgeKind = "produces"   // task writes artifact
	EdgeCompiles  EdgeKind = "compiles"   // target compiles file
)

// Graph is the full build graph
type Graph struct {
	Nodes []Node     `json:"nodes"`
	Edges []Edge     `json:"edges"`
	Stats GraphStats `json:"stats"`
}

// GraphStats holds computed metrics about the graph
type GraphStats struct {
	TotalNodes    int `json:"total_nodes"`
	TotalEdges    int `json:"total_edges"`
	TargetCount   int `json:"target_count"`
	SourceCount   int `json:"source_count"`
	TaskCount     int `json:"task_count"`
	ArtifactCount int `json:"artifact_count"`
	CompiledCount int `json:"compiled_count"`
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}
