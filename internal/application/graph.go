package application

import (
	"context"
	"encoding/json"
	"fmt"

	"threatgate/internal/domain"
	"threatgate/internal/infrastructure/canonical"
	"threatgate/internal/ports"
)

// ThreatGraph is an in-memory directed, typed multigraph of threats, assets,
// controls, vulnerabilities, techniques, CVEs and CWEs. Mutating calls are
// not safe for concurrent use; read paths are, as long as no writer runs.
type ThreatGraph struct {
	nodes   map[string]domain.ThreatNode
	edges   map[string]domain.ThreatEdge
	forward map[string][]string // node id -> outgoing edge ids
	reverse map[string][]string // node id -> incoming edge ids
	logger  ports.Logger
}

func NewThreatGraph(logger ports.Logger) *ThreatGraph {
	return &ThreatGraph{
		nodes:   make(map[string]domain.ThreatNode),
		edges:   make(map[string]domain.ThreatEdge),
		forward: make(map[string][]string),
		reverse: make(map[string][]string),
		logger:  logger,
	}
}

// AddNode upserts a node by id.
func (g *ThreatGraph) AddNode(node domain.ThreatNode) {
	g.nodes[node.ID] = node
	if _, ok := g.forward[node.ID]; !ok {
		g.forward[node.ID] = nil
	}
	if _, ok := g.reverse[node.ID]; !ok {
		g.reverse[node.ID] = nil
	}
}

// AddEdge upserts an edge. Both endpoints must already exist; on failure the
// edge and adjacency maps are left unchanged.
func (g *ThreatGraph) AddEdge(edge domain.ThreatEdge) error {
	if _, ok := g.nodes[edge.SourceID]; !ok {
		return fmt.Errorf("%w: source %s", domain.ErrNodeNotFound, edge.SourceID)
	}
	if _, ok := g.nodes[edge.TargetID]; !ok {
		return fmt.Errorf("%w: target %s", domain.ErrNodeNotFound, edge.TargetID)
	}
	if _, exists := g.edges[edge.ID]; !exists {
		g.forward[edge.SourceID] = append(g.forward[edge.SourceID], edge.ID)
		g.reverse[edge.TargetID] = append(g.reverse[edge.TargetID], edge.ID)
	}
	g.edges[edge.ID] = edge
	return nil
}

// GetNode returns the node and whether it exists.
func (g *ThreatGraph) GetNode(nodeID string) (domain.ThreatNode, bool) {
	node, ok := g.nodes[nodeID]
	return node, ok
}

// NodeCount and EdgeCount report graph size.
func (g *ThreatGraph) NodeCount() int { return len(g.nodes) }
func (g *ThreatGraph) EdgeCount() int { return len(g.edges) }

// GetNeighbors follows forward adjacency; an empty edgeType means any.
func (g *ThreatGraph) GetNeighbors(nodeID string, edgeType domain.EdgeType) []domain.ThreatNode {
	var neighbors []domain.ThreatNode
	for _, edgeID := range g.forward[nodeID] {
		edge, ok := g.edges[edgeID]
		if !ok {
			continue
		}
		if edgeType != "" && edge.Type != edgeType {
			continue
		}
		if target, ok := g.nodes[edge.TargetID]; ok {
			neighbors = append(neighbors, target)
		}
	}
	return neighbors
}

type pathState struct {
	current string
	nodes   []string
	edges   []string
}

type traversalStep struct {
	current string
	next    string
	edgeID  string
}

// FindAttackPaths enumerates paths from source to target breadth-first. A
// path completes when the current node equals target and the path is longer
// than one node. The loop guard de-duplicates on the (current, next, edge)
// triple rather than on visited nodes, so a node may legitimately reappear
// in a path via a different edge; this is deliberate, not simple-path
// semantics. Depth is bounded by maxDepth; an empty edgeTypes slice means
// any edge type.
func (g *ThreatGraph) FindAttackPaths(sourceID, targetID string, maxDepth int, edgeTypes []domain.EdgeType) []domain.AttackPath {
	if _, ok := g.nodes[sourceID]; !ok {
		return nil
	}
	if _, ok := g.nodes[targetID]; !ok {
		return nil
	}

	allowed := make(map[domain.EdgeType]bool, len(edgeTypes))
	for _, t := range edgeTypes {
		allowed[t] = true
	}

	var paths []domain.AttackPath
	queue := []pathState{{current: sourceID, nodes: []string{sourceID}}}
	visited := make(map[traversalStep]bool)

	for len(queue) > 0 {
		state := queue[0]
		queue = queue[1:]

		if len(state.nodes) > maxDepth {
			continue
		}
		if state.current == targetID && len(state.nodes) > 1 {
			paths = append(paths, domain.AttackPath{
				ID:        fmt.Sprintf("path_%d", len(paths)),
				Nodes:     state.nodes,
				Edges:     state.edges,
				TotalRisk: g.pathRisk(state.nodes),
			})
			continue
		}

		for _, edgeID := range g.forward[state.current] {
			edge, ok := g.edges[edgeID]
			if !ok {
				continue
			}
			if len(allowed) > 0 && !allowed[edge.Type] {
				continue
			}
			step := traversalStep{current: state.current, next: edge.TargetID, edgeID: edgeID}
			if visited[step] {
				continue
			}
			visited[step] = true

			nextNodes := append(append([]string(nil), state.nodes...), edge.TargetID)
			nextEdges := append(append([]string(nil), state.edges...), edgeID)
			queue = append(queue, pathState{current: edge.TargetID, nodes: nextNodes, edges: nextEdges})
		}
	}

	g.logger.Info(context.Background(), "attack path search finished",
		"source", sourceID, "target", targetID, "paths", len(paths))
	return paths
}

// pathRisk is the mean of the risk scores defined along the path; nodes
// without a score are excluded from the average, not treated as zero.
func (g *ThreatGraph) pathRisk(nodeIDs []string) float64 {
	total := 0.0
	count := 0
	for _, id := range nodeIDs {
		if node, ok := g.nodes[id]; ok && node.RiskScore != nil {
			total += *node.RiskScore
			count++
		}
	}
	if count == 0 {
		return 0.0
	}
	return total / float64(count)
}

// GetMitigationsForThreat returns control nodes reaching the threat through
// mitigates edges.
func (g *ThreatGraph) GetMitigationsForThreat(threatID string) []domain.ThreatNode {
	var mitigations []domain.ThreatNode
	for _, edgeID := range g.reverse[threatID] {
		edge, ok := g.edges[edgeID]
		if !ok || edge.Type != domain.EdgeMitigates {
			continue
		}
		source, ok := g.nodes[edge.SourceID]
		if ok && source.Type == domain.NodeControl {
			mitigations = append(mitigations, source)
		}
	}
	return mitigations
}

// GetRelatedThreats walks the union of forward and reverse edges up to
// maxHops and collects threat nodes other than the start node.
func (g *ThreatGraph) GetRelatedThreats(nodeID string, maxHops int) []domain.ThreatNode {
	var related []domain.ThreatNode
	visited := make(map[string]bool)

	type hopState struct {
		id   string
		hops int
	}
	queue := []hopState{{id: nodeID}}

	for len(queue) > 0 {
		state := queue[0]
		queue = queue[1:]

		if state.hops > maxHops || visited[state.id] {
			continue
		}
		visited[state.id] = true

		if node, ok := g.nodes[state.id]; ok && node.Type == domain.NodeThreat && state.id != nodeID {
			related = append(related, node)
		}

		edgeIDs := append(append([]string(nil), g.forward[state.id]...), g.reverse[state.id]...)
		for _, edgeID := range edgeIDs {
			edge, ok := g.edges[edgeID]
			if !ok {
				continue
			}
			next := edge.TargetID
			if edge.SourceID != state.id {
				next = edge.SourceID
			}
			if !visited[next] {
				queue = append(queue, hopState{id: next, hops: state.hops + 1})
			}
		}
	}
	return related
}

// LinkCVEToTechnique links a CVE node to an ATT&CK technique node. The edge
// id is derived from the canonical content, so repeated calls upsert.
func (g *ThreatGraph) LinkCVEToTechnique(cveID, techniqueID string, weight float64) error {
	edgeID, err := deriveEdgeID(cveID, techniqueID, domain.EdgeRelatedTo)
	if err != nil {
		return err
	}
	return g.AddEdge(domain.ThreatEdge{
		ID:       edgeID,
		SourceID: cveID,
		TargetID: techniqueID,
		Type:     domain.EdgeRelatedTo,
		Weight:   weight,
		Metadata: map[string]any{"relationship": "cve_exploits_technique"},
	})
}

// LinkTechniqueToMitigation links a control node to the technique it
// mitigates. Same content-derived edge id discipline as above.
func (g *ThreatGraph) LinkTechniqueToMitigation(techniqueID, controlID string, weight float64) error {
	edgeID, err := deriveEdgeID(controlID, techniqueID, domain.EdgeMitigates)
	if err != nil {
		return err
	}
	return g.AddEdge(domain.ThreatEdge{
		ID:       edgeID,
		SourceID: controlID,
		TargetID: techniqueID,
		Type:     domain.EdgeMitigates,
		Weight:   weight,
		Metadata: map[string]any{"relationship": "control_mitigates_technique"},
	})
}

func deriveEdgeID(sourceID, targetID string, edgeType domain.EdgeType) (string, error) {
	content, err := json.Marshal(map[string]string{
		"source": sourceID,
		"target": targetID,
		"type":   string(edgeType),
	})
	if err != nil {
		return "", err
	}
	digest, err := canonical.Digest(content)
	if err != nil {
		return "", err
	}
	return "edge_" + digest[:16], nil
}

// Nodes and Edges snapshot the graph contents, for persistence.
func (g *ThreatGraph) Nodes() []domain.ThreatNode {
	nodes := make([]domain.ThreatNode, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, n)
	}
	return nodes
}

func (g *ThreatGraph) Edges() []domain.ThreatEdge {
	edges := make([]domain.ThreatEdge, 0, len(g.edges))
	for _, e := range g.edges {
		edges = append(edges, e)
	}
	return edges
}
