package ports

import (
	"context"

	"threatgate/internal/domain"
)

// GraphSnapshotRepository persists threat-graph nodes and edges so the
// in-memory graph can be rehydrated at startup. Graph queries never touch
// the repository.
type GraphSnapshotRepository interface {
	SaveNode(ctx context.Context, node domain.ThreatNode) error
	SaveEdge(ctx context.Context, edge domain.ThreatEdge) error
	LoadNodes(ctx context.Context) ([]domain.ThreatNode, error)
	LoadEdges(ctx context.Context) ([]domain.ThreatEdge, error)
}
