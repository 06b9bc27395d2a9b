package neo4j

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/efebarandurmaz/protoforge/internal/graph"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jRepository implements graph.Repository using Neo4j.
type Neo4jRepository struct {
	driver neo4j.DriverWithContext
}

// NewNeo4j creates a Neo4j-backed repository.
func NewNeo4j(ctx context.Context, uri, username, password string) (*Neo4jRepository, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	return &Neo4jRepository{driver: driver}, nil
}

type statement struct {
	query  string
	params map[string]any
}

// labels maps node kinds to Cypher labels. Labels cannot be query
// parameters, so only these fixed values are interpolated.
var labels = map[graph.NodeKind]string{
	graph.NodeTarget:   "Target",
	graph.NodeSource:   "Source",
	graph.NodeTask:     "Task",
	graph.NodeArtifact: "Artifact",
}

func relType(k graph.EdgeKind) string {
	return strings.ToUpper(string(k))
}

// storeStatements returns the writes that persist g, nodes before edges.
func storeStatements(g *graph.Graph) []statement {
	var stmts []statement
	for _, n := range g.Nodes {
		label, ok := labels[n.Kind]
		if !ok {
			label = "Node"
		}
		meta := make(map[string]any, len(n.Metadata))
		for k, v := range n.Metadata {
			meta[k] = v
		}
		stmts = append(stmts, statement{
			query: "MERGE (n:BuildNode {id: $id}) SET n:" + label +
				", n.name = $name, n.kind = $kind, n.target = $target SET n += $meta",
			params: map[string]any{
				"id":     n.ID,
				"name":   n.Name,
				"kind":   string(n.Kind),
				"target": n.Target,
				"meta":   meta,
			},
		})
	}
	for _, e := range g.Edges {
		stmts = append(stmts, statement{
			query: "MATCH (a:BuildNode {id: $from}) MATCH (b:BuildNode {id: $to}) " +
				"MERGE (a)-[:" + relType(e.Kind) + "]->(b)",
			params: map[string]any{"from": e.From, "to": e.To},
		})
	}
	return stmts
}

func (r *Neo4jRepository) StoreGraph(ctx context.Context, g *graph.Graph) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, s := range storeStatements(g) {
			if _, err := tx.Run(ctx, s.query, s.params); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("store build graph: %w", err)
	}
	return nil
}

func (r *Neo4jRepository) LoadGraph(ctx context.Context, target string) (*graph.Graph, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		nodeRows, err := collect(ctx, tx,
			"MATCH (n:BuildNode {target: $target}) RETURN n.id AS id, n.name AS name, n.kind AS kind",
			map[string]any{"target": target})
		if err != nil {
			return nil, err
		}
		edgeRows, err := collect(ctx, tx,
			"MATCH (a:BuildNode {target: $target})-[r]->(b:BuildNode {target: $target}) RETURN a.id AS from, type(r) AS rel, b.id AS to",
			map[string]any{"target": target})
		if err != nil {
			return nil, err
		}
		return assemble(target, nodeRows, edgeRows), nil
	})
	if err != nil {
		return nil, fmt.Errorf("load build graph %s: %w", target, err)
	}
	g := result.(*graph.Graph)
	if len(g.Nodes) == 0 {
		return nil, fmt.Errorf("load build graph %s: no such target", target)
	}
	return g, nil
}

func collect(ctx context.Context, tx neo4j.ManagedTransaction, query string, params map[string]any) ([]map[string]any, error) {
	records, err := tx.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	var rows []map[string]any
	for records.Next(ctx) {
		rows = append(rows, records.Record().AsMap())
	}
	return rows, records.Err()
}

// assemble builds the graph of target from query rows, sorted so output
// does not depend on the order Neo4j returns them in.
func assemble(target string, nodeRows, edgeRows []map[string]any) *graph.Graph {
	g := &graph.Graph{}
	for _, row := range nodeRows {
		g.Nodes = append(g.Nodes, graph.Node{
			ID:     asString(row["id"]),
			Name:   asString(row["name"]),
			Kind:   graph.NodeKind(asString(row["kind"])),
			Target: target,
		})
	}
	for _, row := range edgeRows {
		g.Edges = append(g.Edges, graph.Edge{
			From: asString(row["from"]),
			To:   asString(row["to"]),
			Kind: graph.EdgeKind(strings.ToLower(asString(row["rel"]))),
		})
	}
	sort.Slice(g.Nodes, func(i, j int) bool { return g.Nodes[i].ID < g.Nodes[j].ID })
	sort.Slice(g.Edges, func(i, j int) bool {
		a, b := g.Edges[i], g.Edges[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		return a.Kind < b.Kind
	})
	g.RefreshStats()
	return g
}

func (r *Neo4jRepository) QueryProducers(ctx context.Context, path string) ([]string, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx,
			"MATCH (t:Task)-[:PRODUCES]->(:BuildNode {id: $id}) RETURN t.id AS id",
			map[string]any{"id": graph.FileID(path)})
		if err != nil {
			return nil, err
		}
		var ids []string
		for records.Next(ctx) {
			id, _ := records.Record().Get("id")
			ids = append(ids, asString(id))
		}
		return ids, records.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

func (r *Neo4jRepository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

var _ graph.Repository = (*Neo4jRepository)(nil)
